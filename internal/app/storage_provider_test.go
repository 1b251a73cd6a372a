package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

func TestClassifyStorageProviderBootstrapError(t *testing.T) {
	cases := []struct {
		code objstore.ConfigErrorCode
		want StorageProviderBootstrapErrorCode
	}{
		{objstore.ConfigErrorInvalidMode, StorageProviderBootstrapErrorInvalidMode},
		{objstore.ConfigErrorMissingSetting, StorageProviderBootstrapErrorMissingSetting},
		{objstore.ConfigErrorInvalidEmulatorHost, StorageProviderBootstrapErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		err := classifyStorageProviderBootstrapError(objstore.Config{Mode: objstore.ModeGCSEmulator}, &objstore.ConfigError{Code: tc.code})
		var got *StorageProviderBootstrapError
		if !errors.As(err, &got) || got.Code != tc.want {
			t.Fatalf("classify(%s): want=%q got=%v", tc.code, tc.want, err)
		}
	}

	err := classifyStorageProviderBootstrapError(objstore.Config{Mode: objstore.ModeGCS}, errors.New("dial tcp: refused"))
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("connect error: want=%q got=%q", StorageProviderBootstrapErrorConnectFailed, code)
	}
}

func TestResolveShardStoreDispatchesByMode(t *testing.T) {
	orig := newShardBucket
	t.Cleanup(func() { newShardBucket = orig })

	var gotMode objstore.Mode
	newShardBucket = func(_ context.Context, _ *logger.Logger, cfg objstore.Config) (objstore.Store, error) {
		gotMode = cfg.Mode
		return objstore.NewMemory(), nil
	}
	store, err := resolveShardStore(context.Background(), logger.Nop(), objstore.Config{Mode: objstore.ModeGCS, GCSBucket: "shards"})
	if err != nil || store == nil || gotMode != objstore.ModeGCS {
		t.Fatalf("gcs: store=%v mode=%q err=%v", store, gotMode, err)
	}

	local, err := resolveShardStore(context.Background(), logger.Nop(), objstore.Config{Mode: objstore.ModeLocal, LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if err := local.Put(context.Background(), "a/b.bin", []byte{1}, ""); err != nil {
		t.Fatalf("local Put: %v", err)
	}

	_, err = resolveShardStore(context.Background(), logger.Nop(), objstore.Config{Mode: objstore.ModeGCS})
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorMissingSetting {
		t.Fatalf("missing bucket: want=%q got=%q (err=%v)", StorageProviderBootstrapErrorMissingSetting, code, err)
	}
}
