package stores

import (
	"context"

	"chatdash/config"
	"chatdash/core"
	"chatdash/stores/aws"
	"chatdash/stores/filesystem"
	"chatdash/stores/memory"
	"chatdash/stores/sqlite"
	"chatdash/stores/valkey"

	"github.com/sirupsen/logrus"
)

// GetStore builds the storage backend selected by cfg.Type.
func GetStore(ctx context.Context, cfg config.StorageConfig) (core.Backend, error) {
	var (
		store core.Backend
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.LocalPath
		store, err = filesystem.NewStore(cfg.LocalPath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		storageField["bucketName"] = cfg.S3Bucket
		storageField["prefix"] = cfg.S3Prefix
		store, err = aws.NewStore(ctx, cfg.S3Bucket, cfg.S3Prefix)
	case "valkey":
		storageField["addr"] = cfg.ValkeyAddr
		store, err = valkey.NewStore(cfg.ValkeyAddr, cfg.ValkeyPassword, cfg.ValkeyPrefix)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	if err != nil {
		logrus.WithFields(storageField).WithError(err).Error("Failed to initialise storage")
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
