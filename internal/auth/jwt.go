package auth

import (
	"errors"
	"time"

	"manual-approval-workflow/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func GenerateJWT(userID uint64, role string, tokenVersion uint64) (string, error) {
	claims := jwt.MapClaims{
		"user_id":       userID,
		"role":          role,
		"token_version": tokenVersion,
		"exp":           time.Now().Add(time.Hour * 24 * 3).Unix(), // expires in 3 days
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

func VerifyJWT(tokenString string) (*jwt.Token, error) {
	// parse token
	jwtToken, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	// isValid
	if !jwtToken.Valid {
		return nil, errors.New("token invalid")
	}

	return jwtToken, nil
}

// GetDataFromToken extracts the user id, role and token version claims.
func GetDataFromToken(token *jwt.Token) (uint64, string, uint64, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", 0, errors.New("invalid token claims")
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", 0, errors.New("user_id claim missing")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return 0, "", 0, errors.New("role claim missing")
	}
	versionFloat, ok := claims["token_version"].(float64)
	if !ok {
		return 0, "", 0, errors.New("token_version claim missing")
	}

	return uint64(userIDFloat), role, uint64(versionFloat), nil
}
