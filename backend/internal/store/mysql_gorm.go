package store

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitMySQL 打开 gorm 连接；底下的 *sql.DB 可以从返回值拿去给 SnapshotStore 共用
func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}
