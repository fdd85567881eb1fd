// Package user_role_enum 定义平台用户角色
// 角色由身份服务签发在 JWT 中，聊天核心只做解析与鉴权，不做认证
package user_role_enum

import "strings"

// Role 用户角色
type Role string

const (
	Admin   Role = "admin"
	Teacher Role = "teacher"
	Parent  Role = "parent"
	Student Role = "student"
)

// Parse 解析角色字符串，大小写不敏感
// 未知角色返回 false
func Parse(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case Admin, Teacher, Parent, Student:
		return r, true
	}
	return "", false
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	_, ok := Parse(string(r))
	return ok
}

func (r Role) String() string {
	return string(r)
}
