// Package conversation_kind_enum 定义会话类型
package conversation_kind_enum

// Kind 会话发起方式
type Kind int8

const (
	ParentInitiated  Kind = 0 // 家长发起
	TeacherInitiated Kind = 1 // 老师发起（需存在教学关系）
	CourseLinked     Kind = 2 // 预约确认后由系统创建，必含学生
)

func (k Kind) String() string {
	switch k {
	case ParentInitiated:
		return "parent_initiated"
	case TeacherInitiated:
		return "teacher_initiated"
	case CourseLinked:
		return "course_linked"
	}
	return "unknown"
}

// Parse 从字符串解析会话类型
func Parse(s string) (Kind, bool) {
	switch s {
	case "parent_initiated":
		return ParentInitiated, true
	case "teacher_initiated":
		return TeacherInitiated, true
	case "course_linked":
		return CourseLinked, true
	}
	return 0, false
}
