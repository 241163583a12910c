package hostfunc

import (
	"context"
	"fmt"
	"time"

	"github.com/caffeineduck/nativebind/binding"
)

// ModuleName is the name the sandbox module is loaded under.
const ModuleName = "sandbox"

// Config selects the capabilities exposed to sandboxed code. A nil KV or
// HTTP and an empty mount list leave the corresponding functions out.
type Config struct {
	KV        *KVStore
	HTTP      *HTTPConfig
	Mounts    []Mount
	FSOptions []FSOption

	// Now overrides the clock behind time_now.
	Now func() time.Time
}

// Table builds the export table for cfg.
func Table(cfg Config) (binding.Table, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	entries := []binding.Entry{
		{Name: "time_now", Impl: method(func(ctx context.Context, _ TimeNowRequest) (any, error) {
			t := now()
			return &TimeNowResponse{
				Unix:      t.Unix(),
				UnixMilli: t.UnixMilli(),
				RFC3339:   t.UTC().Format(time.RFC3339Nano),
			}, nil
		})},
	}

	if kv := cfg.KV; kv != nil {
		entries = append(entries,
			binding.Entry{Name: "kv_get", Impl: method(kv.Get)},
			binding.Entry{Name: "kv_set", Impl: method(kv.Set)},
			binding.Entry{Name: "kv_delete", Impl: method(kv.Delete)},
			binding.Entry{Name: "kv_keys", Impl: method(kv.Keys)},
		)
	}

	if cfg.HTTP != nil {
		h := NewHTTP(*cfg.HTTP)
		entries = append(entries,
			binding.Entry{Name: "http_request", Impl: method(h.Request)},
			binding.Entry{Name: "http_get", Impl: method(h.Get)},
		)
	}

	if len(cfg.Mounts) > 0 {
		fs, err := NewFS(cfg.Mounts, cfg.FSOptions...)
		if err != nil {
			return binding.Table{}, fmt.Errorf("hostfunc: %w", err)
		}
		entries = append(entries,
			binding.Entry{Name: "fs_read", Impl: method(fs.Read)},
			binding.Entry{Name: "fs_write", Impl: method(fs.Write)},
			binding.Entry{Name: "fs_list", Impl: method(fs.List)},
			binding.Entry{Name: "fs_exists", Impl: method(fs.Exists)},
			binding.Entry{Name: "fs_mkdir", Impl: method(fs.Mkdir)},
			binding.Entry{Name: "fs_remove", Impl: method(fs.Remove)},
			binding.Entry{Name: "fs_stat", Impl: method(fs.Stat)},
		)
	}

	t, err := binding.NewTable(entries...)
	if err != nil {
		return binding.Table{}, fmt.Errorf("hostfunc: %w", err)
	}
	return t, nil
}

// NewModule returns the sandbox module for cfg, ready to be loaded into a
// host.
func NewModule(cfg Config) (*binding.Module, error) {
	t, err := Table(cfg)
	if err != nil {
		return nil, err
	}
	return binding.NewModule(ModuleName, t), nil
}
