// Package database - Handles the in-memory go-memdb database holding users and accounts
package database

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-memdb"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrNotFound is returned when the requested record is not in the database
var ErrNotFound = errors.New("not found")

// Table and index names
const (
	userTable     = "user"
	accountTable  = "account"
	idIndex       = "id"
	userNameIndex = "username"
)

// DBConnection is the structure that holds the database engine
type DBConnection struct {
	DB *memdb.MemDB
}

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key) // get the env var
	if !ex {                     // not found return default
		return defVal
	}
	return val // return value for env var
}

// InitLogger sets up the Zap Logger to log to the console in a human readable format
func InitLogger(level string) (*zap.Logger, error) {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		prodConfig.Level = zap.NewAtomicLevelAt(lvl)
	}

	return prodConfig.Build()
}

// schema defines the tables of the database.
// memdb requires a unique "id" index on every table.
func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			userTable: {
				Name: userTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.UintFieldIndex{Field: "ID"},
					},
					userNameIndex: {
						Name:         userNameIndex,
						AllowMissing: true,
						Indexer: &memdb.StringFieldIndex{
							Field:     "UserName",
							Lowercase: true,
						},
					},
				},
			},
			accountTable: {
				Name: accountTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Username"},
					},
				},
			},
		},
	}
}

// InitializeDatabase creates the in-memory database and its tables
func InitializeDatabase() (DBConnection, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return DBConnection{}, fmt.Errorf("failed to create database: %w", err)
	}
	return DBConnection{DB: db}, nil
}
