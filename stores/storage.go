package stores

import (
	"context"
	"fmt"

	"dispatch-gateway/config"
	"dispatch-gateway/core"
	"dispatch-gateway/stores/aws"
	"dispatch-gateway/stores/filesystem"
	"dispatch-gateway/stores/memory"
	"dispatch-gateway/stores/mongo"
	"dispatch-gateway/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Open builds the document store selected by cfg.Type.
func Open(ctx context.Context, cfg config.Storage) (core.DocumentStore, error) {
	var (
		store core.DocumentStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI environment variable must be set for mongo storage type")
		}
		storageField["database"] = cfg.MongoDatabase
		store, err = mongo.NewStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store, err = filesystem.NewStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(ctx, cfg.DataSourceName)
	case "s3":
		if cfg.S3BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3BucketName
		store, err = aws.NewStore(ctx, cfg.S3BucketName)
	case "memory", "":
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown STORAGE_TYPE %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
