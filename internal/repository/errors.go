package repository

import "errors"

var (
	// ErrCaseNotFound 案例不存在
	ErrCaseNotFound = errors.New("case not found")

	// ErrConflict 乐观并发冲突：版本号不匹配（行已被并发写入）
	// 调用方必须重新读取最新状态后重试，禁止盲目覆盖
	ErrConflict = errors.New("case was updated concurrently")
)
