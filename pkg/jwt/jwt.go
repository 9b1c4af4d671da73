// Package jwt 处理管理后台的 JWT 签发与校验
package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwtpkg "github.com/golang-jwt/jwt/v5"

	"easypay/pkg/app"
	"easypay/pkg/config"
)

// RoleAdmin 管理员角色
const RoleAdmin = "admin"

var (
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrHeaderEmpty        = errors.New("authorization header is empty")
	ErrHeaderMalformed    = errors.New("authorization header is malformed")
	ErrSecretNotConfigure = errors.New("jwt secret is not configured")
)

// JWT 定义一个 jwt 对象
type JWT struct {
	// 秘钥，用以加密 JWT，读取配置信息 jwt.secret
	SignKey []byte

	// 签发者
	Issuer string

	// 过期时间
	ExpireTime time.Duration
}

// CustomClaims 自定义载荷
type CustomClaims struct {
	Role string `json:"role"`

	jwtpkg.RegisteredClaims
}

// NewJWT 根据 jwt.* 配置创建
func NewJWT() *JWT {
	return &JWT{
		SignKey:    []byte(config.GetString("jwt.secret")),
		Issuer:     config.GetString("jwt.issuer", "easypay-admin"),
		ExpireTime: time.Duration(config.GetInt64("jwt.expire_minutes", 120)) * time.Minute,
	}
}

// ParserToken 解析 Token，中间件中调用
func (j *JWT) ParserToken(c *gin.Context) (*CustomClaims, error) {
	tokenString, err := j.getTokenFromHeader(c)
	if err != nil {
		return nil, err
	}
	return j.Parse(tokenString)
}

// Parse 校验签名、签发者和过期时间，只接受 HS256
func (j *JWT) Parse(tokenString string) (*CustomClaims, error) {
	if len(j.SignKey) == 0 {
		return nil, ErrSecretNotConfigure
	}

	token, err := jwtpkg.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwtpkg.Token) (interface{}, error) {
		return j.SignKey, nil
	},
		jwtpkg.WithValidMethods([]string{jwtpkg.SigningMethodHS256.Alg()}),
		jwtpkg.WithIssuer(j.Issuer),
		jwtpkg.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtpkg.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// IssueToken 生成 Token，运维命令行中调用
func (j *JWT) IssueToken(subject, role string) (string, error) {
	if len(j.SignKey) == 0 {
		return "", ErrSecretNotConfigure
	}

	now := app.TimenowInTimezone()
	claims := CustomClaims{
		Role: role,
		RegisteredClaims: jwtpkg.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.Issuer,
			IssuedAt:  jwtpkg.NewNumericDate(now),
			NotBefore: jwtpkg.NewNumericDate(now),
			ExpiresAt: jwtpkg.NewNumericDate(now.Add(j.ExpireTime)),
		},
	}

	token := jwtpkg.NewWithClaims(jwtpkg.SigningMethodHS256, claims)
	return token.SignedString(j.SignKey)
}

// getTokenFromHeader Authorization:Bearer xxxxx
func (j *JWT) getTokenFromHeader(c *gin.Context) (string, error) {
	authHeader := c.Request.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrHeaderEmpty
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrHeaderMalformed
	}
	return parts[1], nil
}
