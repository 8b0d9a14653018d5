package store

import "errors"

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("store: record not found")

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// normalizePage 修正分页参数
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ErrInvalid 记录字段校验失败
var ErrInvalid = errors.New("store: invalid record")
