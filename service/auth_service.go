package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"yunsou/config"
	"yunsou/model"
	"yunsou/util"
	jsonutil "yunsou/util/json"
	"yunsou/util/log"
)

// tokenTTL 签发令牌的有效期
const tokenTTL = 24 * time.Hour

// AuthService 认证服务，用户数据落在本地JSON文件
type AuthService struct {
	mu        sync.RWMutex
	usersFile string
	jwtSecret []byte
	users     map[string]*model.User
	revoked   map[string]time.Time // 已注销令牌及其原始过期时间
}

// JWTClaims JWT声明
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// storedUser 落盘用户记录。
// 哈希和盐不随User下发，落盘时在这里补上
type storedUser struct {
	model.User
	PasswordHash string `json:"password_hash"`
	Salt         string `json:"salt"`
}

// NewAuthService 创建认证服务并加载已有用户
func NewAuthService() *AuthService {
	dataPath := "./data"
	secret := ""
	if config.AppConfig != nil {
		dataPath = config.AppConfig.DataPath
		secret = config.AppConfig.AuthSecret
	}
	if secret == "" {
		secret = randomHex(32)
	}

	service := &AuthService{
		usersFile: filepath.Join(dataPath, "users.json"),
		jwtSecret: []byte(secret),
		users:     make(map[string]*model.User),
		revoked:   make(map[string]time.Time),
	}

	if err := service.loadUsers(); err != nil {
		log.Warnf("加载用户数据失败: %v", err)
	}

	return service
}

// Register 用户注册
func (s *AuthService) Register(req *model.RegisterRequest) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByUsername(req.Username) != nil {
		return nil, fmt.Errorf("用户名已存在")
	}
	if s.findByEmail(req.Email) != nil {
		return nil, fmt.Errorf("邮箱已被使用")
	}

	salt := randomHex(16)
	now := time.Now()
	user := &model.User{
		ID:           randomHex(16),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashPassword(req.Password, salt),
		Salt:         salt,
		UserType:     model.UserTypeNormal,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.users[user.ID] = user
	if err := s.saveUsers(); err != nil {
		delete(s.users, user.ID)
		return nil, fmt.Errorf("保存用户失败: %w", err)
	}

	return user, nil
}

// Login 用户登录，用户名和邮箱都可以作为账号
func (s *AuthService) Login(req *model.LoginRequest) (*model.LoginResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.findByUsername(req.Username)
	if user == nil {
		user = s.findByEmail(req.Username)
	}
	if user == nil || hashPassword(req.Password, user.Salt) != user.PasswordHash {
		return nil, fmt.Errorf("用户名或密码错误")
	}
	if !user.IsActive {
		return nil, fmt.Errorf("账户已被禁用")
	}

	token, expiresAt, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	user.LastLoginAt = time.Now()
	user.LoginCount++
	user.UpdatedAt = time.Now()
	if err := s.saveUsers(); err != nil {
		return nil, fmt.Errorf("保存用户失败: %w", err)
	}

	return &model.LoginResponse{
		User:        *user,
		Token:       token,
		ExpiresAt:   expiresAt,
		Permissions: user.GetUserPermissions(),
	}, nil
}

// Logout 注销令牌，注销记录保留到令牌自然过期
func (s *AuthService) Logout(token string) error {
	claims, err := s.parseJWT(token)
	if err != nil {
		return fmt.Errorf("无效的令牌: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[token] = claims.ExpiresAt.Time
	s.sweepRevokedLocked()
	return nil
}

// RefreshToken 用仍在有效期内的令牌换取新令牌
func (s *AuthService) RefreshToken(token string) (*model.LoginResponse, error) {
	user, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newToken, expiresAt, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	// 旧令牌作废
	if claims, err := s.parseJWT(token); err == nil {
		s.revoked[token] = claims.ExpiresAt.Time
	}

	return &model.LoginResponse{
		User:        *user,
		Token:       newToken,
		ExpiresAt:   expiresAt,
		Permissions: user.GetUserPermissions(),
	}, nil
}

// ValidateToken 验证令牌并返回对应用户
func (s *AuthService) ValidateToken(token string) (*model.User, error) {
	claims, err := s.parseJWT(token)
	if err != nil {
		return nil, fmt.Errorf("无效的令牌: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.revoked[token]; ok {
		return nil, fmt.Errorf("令牌已注销")
	}

	user, exists := s.users[claims.UserID]
	if !exists {
		return nil, fmt.Errorf("用户不存在")
	}
	if !user.IsActive {
		return nil, fmt.Errorf("账户已被禁用")
	}

	return user, nil
}

// GetUser 获取用户信息
func (s *AuthService) GetUser(userID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, fmt.Errorf("用户不存在")
	}
	return user, nil
}

// ChangePassword 修改密码，新密码换用新盐
func (s *AuthService) ChangePassword(userID string, req *model.PasswordChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return fmt.Errorf("用户不存在")
	}
	if hashPassword(req.OldPassword, user.Salt) != user.PasswordHash {
		return fmt.Errorf("旧密码错误")
	}

	salt := randomHex(16)
	user.Salt = salt
	user.PasswordHash = hashPassword(req.NewPassword, salt)
	user.UpdatedAt = time.Now()

	if err := s.saveUsers(); err != nil {
		return fmt.Errorf("保存用户失败: %w", err)
	}
	return nil
}

// UpgradeMembership 把用户升级为会员
func (s *AuthService) UpgradeMembership(userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, fmt.Errorf("用户不存在")
	}

	user.UserType = model.UserTypeMember
	user.UpdatedAt = time.Now()

	if err := s.saveUsers(); err != nil {
		return nil, fmt.Errorf("保存用户失败: %w", err)
	}
	return user, nil
}

// 以下方法调用方需持锁

func (s *AuthService) findByUsername(username string) *model.User {
	for _, user := range s.users {
		if user.Username == username {
			return user
		}
	}
	return nil
}

func (s *AuthService) findByEmail(email string) *model.User {
	for _, user := range s.users {
		if user.Email == email {
			return user
		}
	}
	return nil
}

func (s *AuthService) sweepRevokedLocked() {
	now := time.Now()
	for token, expiresAt := range s.revoked {
		if now.After(expiresAt) {
			delete(s.revoked, token)
		}
	}
}

func (s *AuthService) generateJWT(user *model.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tokenTTL)

	claims := &JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		UserType: string(user.UserType),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

func (s *AuthService) parseJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("不支持的签名算法: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("无效的令牌")
}

func (s *AuthService) loadUsers() error {
	if !util.FileExists(s.usersFile) {
		return nil
	}

	data, err := os.ReadFile(s.usersFile)
	if err != nil {
		return err
	}

	stored := make(map[string]*storedUser)
	if err := jsonutil.Unmarshal(data, &stored); err != nil {
		return err
	}

	for id, su := range stored {
		user := su.User
		user.PasswordHash = su.PasswordHash
		user.Salt = su.Salt
		s.users[id] = &user
	}
	return nil
}

func (s *AuthService) saveUsers() error {
	stored := make(map[string]*storedUser, len(s.users))
	for id, user := range s.users {
		stored[id] = &storedUser{
			User:         *user,
			PasswordHash: user.PasswordHash,
			Salt:         user.Salt,
		}
	}

	data, err := jsonutil.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFile(s.usersFile, data, 0644)
}

func hashPassword(password, salt string) string {
	hash := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(hash[:])
}

func randomHex(n int) string {
	bytes := make([]byte, n)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
