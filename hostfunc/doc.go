// Package hostfunc implements the sandbox native module: capabilities that
// WebAssembly guests reach through native exports.
//
// Sandboxed code has no implicit access to system resources. Each capability
// is enabled through [Config], and [Table] declares only the functions the
// configuration allows:
//
//	mod, err := hostfunc.NewModule(hostfunc.Config{
//	    KV:   hostfunc.NewKVStore(hostfunc.WithMaxEntries(100)),
//	    HTTP: &hostfunc.HTTPConfig{AllowedHosts: []string{"api.example.com"}},
//	    Mounts: []hostfunc.Mount{
//	        {VirtualPath: "/data", HostPath: "./input", Mode: hostfunc.MountReadOnly},
//	    },
//	})
//
// Every function takes a single object argument, for example
// kv_get({"key": "k", "default": 0}) or fs_read({"path": "/data/a.txt"}).
// Unknown fields are rejected with a TypeError.
//
// # Capabilities
//
// time_now is always present. kv_get, kv_set, kv_delete and kv_keys need a
// [KVStore], either in memory ([NewKVStore]) or persisted ([OpenKVStore]).
// http_request and http_get need an [HTTPConfig]. fs_read, fs_write,
// fs_list, fs_exists, fs_mkdir, fs_remove and fs_stat need at least one
// [Mount].
//
// # Security Model
//
// All host functions follow the principle of least privilege:
//   - HTTP requests are limited to explicitly allowed hosts
//   - Filesystem access is restricted to mounted paths with specific permissions
//   - All operations have configurable size limits to prevent resource exhaustion
package hostfunc
