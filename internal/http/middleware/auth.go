package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

const currentUserKey = "currentUser"

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func setCurrentUser(c *gin.Context, u *model.User) {
	c.Set(currentUserKey, u)
}

// GetCurrentUser returns the member JWTMiddleware loaded for this request.
func GetCurrentUser(c *gin.Context) (*model.User, bool) {
	u, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := u.(*model.User)
	return user, ok && user != nil
}
