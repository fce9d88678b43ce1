package model

import (
	"time"
)

// UserType 用户类型
type UserType string

const (
	UserTypeNormal UserType = "normal" // 普通用户
	UserTypeMember UserType = "member" // 会员
	UserTypeAdmin  UserType = "admin"  // 管理员
)

// User 用户账号
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // 密码哈希，不下发给客户端
	Salt         string    `json:"-"` // 每用户独立盐值
	UserType     UserType  `json:"user_type"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
	LoginCount   int       `json:"login_count"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=20"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // 用户名或邮箱
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	User        User      `json:"user"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Permissions []string  `json:"permissions"`
}

// PasswordChangeRequest 修改密码请求
type PasswordChangeRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// 权限定义
const (
	PermissionSearch         = "search"
	PermissionAdvancedSearch = "advanced_search"
	PermissionHistory        = "history"
	PermissionAdmin          = "admin"
)

// GetUserPermissions 按用户类型返回权限列表
func (u *User) GetUserPermissions() []string {
	permissions := []string{PermissionSearch, PermissionHistory}

	switch u.UserType {
	case UserTypeMember:
		permissions = append(permissions, PermissionAdvancedSearch)
	case UserTypeAdmin:
		permissions = append(permissions, PermissionAdvancedSearch, PermissionAdmin)
	}

	return permissions
}

// IsMember 会员或管理员视为会员
func (u *User) IsMember() bool {
	return u.UserType == UserTypeMember || u.UserType == UserTypeAdmin
}
