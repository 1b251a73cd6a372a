package objstore

import (
	"context"
	"errors"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, k := range []string{"run/shards/machine_2_seq.bin", "run/shards/machine_10_seq.bin", "run/scaler.json"} {
		if err := s.Put(ctx, k, []byte(k), ContentTypeForKey(k)); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}
	if err := s.Put(ctx, "run/scaler.json", []byte("v2"), ""); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := s.Get(ctx, "run/scaler.json")
	if err != nil || string(got) != "v2" {
		t.Fatalf("Get: want=v2 got=%q err=%v", got, err)
	}
	keys, err := s.List(ctx, "run/shards/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 || keys[0] != "run/shards/machine_10_seq.bin" {
		t.Fatalf("List: got=%v", keys)
	}
	if err := s.Delete(ctx, "run/scaler.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "run/scaler.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get deleted: want ErrNotFound got=%v", err)
	}
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	exerciseStore(t, s)
	if err := s.Put(context.Background(), "../escape", []byte("x"), ""); err == nil {
		t.Fatalf("Put(../escape): expected error")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestResolveConfigFromEnv(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("SHARD_LOCAL_DIR", "/tmp/shards")
	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Mode != ModeLocal {
		t.Fatalf("mode: want=%q got=%q", ModeLocal, cfg.Mode)
	}

	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")
	t.Setenv("SHARD_GCS_BUCKET", "shards")
	cfg, err = ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Mode != ModeGCSEmulator || !cfg.CompatibilityFallback {
		t.Fatalf("fallback: got mode=%q fallback=%v", cfg.Mode, cfg.CompatibilityFallback)
	}

	t.Setenv("OBJECT_STORAGE_MODE", "s3")
	t.Setenv("S3_ENDPOINT", "")
	_, err = ResolveConfigFromEnv()
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Code != ConfigErrorMissingSetting || ce.Setting != "S3_ENDPOINT" {
		t.Fatalf("s3 without endpoint: got=%v", err)
	}

	t.Setenv("OBJECT_STORAGE_MODE", "ftp")
	if _, err := ResolveConfigFromEnv(); !errors.As(err, &ce) || ce.Code != ConfigErrorInvalidMode {
		t.Fatalf("invalid mode: got=%v", err)
	}
}
