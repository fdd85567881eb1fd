package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"tutor_chat_server/pkg/errorx"
)

// wrapDBError 包装数据库错误
// 根据错误类型返回不同的错误码：
//   - ErrRecordNotFound -> CodeNotFound
//   - ErrDuplicatedKey -> CodeDuplicate（需开启 TranslateError）
//   - 连接断开、死锁、锁等待超时 -> CodeDBError，可重试
//   - 其他错误 -> CodeDBFault
func wrapDBError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errorx.Wrap(err, dbErrorCode(err), msg)
}

// wrapDBErrorf 功能同 wrapDBError，支持格式化消息
func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errorx.Wrapf(err, dbErrorCode(err), format, args...)
}

func dbErrorCode(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errorx.CodeNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errorx.CodeDuplicate
	case transientDBError(err):
		return errorx.CodeDBError
	default:
		return errorx.CodeDBFault
	}
}

// MySQL: 1040 连接数满, 1053 服务关闭中, 1205 锁等待超时, 1213 死锁
var mysqlTransient = map[uint16]bool{1040: true, 1053: true, 1205: true, 1213: true}

// PostgreSQL: 40001 序列化失败, 40P01 死锁, 55P03 拿不到锁, 57P01 管理员关闭, 53300 连接数满
var pgTransient = map[string]bool{"40001": true, "40P01": true, "55P03": true, "57P01": true, "53300": true}

// transientDBError 只有重试可能成功的错误才算暂时性
func transientDBError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlTransient[myErr.Number]
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08 类为连接异常
		return strings.HasPrefix(pgErr.Code, "08") || pgTransient[pgErr.Code]
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
