package hostfunc

// Clock

type TimeNowRequest struct{}

type TimeNowResponse struct {
	Unix      int64  `json:"unix"`
	UnixMilli int64  `json:"unix_milli"`
	RFC3339   string `json:"rfc3339"`
}

// KV store types

type KVGetRequest struct {
	Key     string `json:"key"`
	Default any    `json:"default,omitempty"`
}

type KVSetRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type KVDeleteRequest struct {
	Key string `json:"key"`
}

type KVKeysRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// HTTP types

type HTTPRequest struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

type HTTPGetRequest struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type HTTPResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Filesystem types

type FSReadRequest struct {
	Path string `json:"path"`
}

type FSWriteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type FSListRequest struct {
	Path string `json:"path"`
}

type FSEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

type FSExistsRequest struct {
	Path string `json:"path"`
}

type FSMkdirRequest struct {
	Path string `json:"path"`
}

type FSRemoveRequest struct {
	Path string `json:"path"`
}

type FSStatRequest struct {
	Path string `json:"path"`
}

type FSStatResponse struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	IsDir   bool   `json:"is_dir"`
	ModTime int64  `json:"mod_time"`
}
