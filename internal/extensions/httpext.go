package extensions

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/closecrowd/apyshell/internal/object"
)

func init() {
	Register("httpext", func() Extension { return &httpExt{} })
}

const maxHTTPBody = 4 << 20

// httpExt makes outbound HTTP requests on the script's behalf. The host
// controls which schemes are reachable with the http_modes option
// ("https" by default, "http,https" to allow cleartext).
type httpExt struct {
	client *http.Client
	modes  map[string]bool
}

func (h *httpExt) Name() string { return "httpext" }

func (h *httpExt) Shutdown() {
	if h.client != nil {
		h.client.CloseIdleConnections()
	}
}

func (h *httpExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	h.client = &http.Client{Timeout: 30 * time.Second}
	h.modes = map[string]bool{}
	for _, m := range strings.Split(optStr(options, "http_modes", "https"), ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			h.modes[m] = true
		}
	}
	return map[string]object.BuiltinFunc{
		"http_get_":   h.get,
		"http_post_":  h.post,
		"http_put_":   h.put,
		"http_modes_": h.modesCmd,
	}, nil
}

func (h *httpExt) checkURL(cmd, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s(): bad url: %v", cmd, err)
	}
	if !h.modes[u.Scheme] {
		return nil, fmt.Errorf("%s(): scheme %q is not enabled", cmd, u.Scheme)
	}
	return u, nil
}

// respond reads the body and returns [status, body].
func respond(resp *http.Response) (object.Object, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
	if err != nil {
		return object.None, nil
	}
	return &object.List{Elements: []object.Object{
		&object.Int{Value: int64(resp.StatusCode)},
		&object.Str{Value: string(body)},
	}}, nil
}

func (h *httpExt) get(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	raw, err := oneStringArg("http_get_", args)
	if err != nil {
		return nil, err
	}
	u, err := h.checkURL("http_get_", raw)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Get(u.String())
	if err != nil {
		return object.None, nil
	}
	return respond(resp)
}

func (h *httpExt) send(cmd, method string, args []object.Object) (object.Object, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("%s() takes 2 or 3 arguments (%d given)", cmd, len(args))
	}
	raw, ok1 := args[0].(*object.Str)
	body, ok2 := args[1].(*object.Str)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%s() url and body must be str", cmd)
	}
	ctype := "text/plain"
	if len(args) == 3 {
		c, ok := args[2].(*object.Str)
		if !ok {
			return nil, fmt.Errorf("%s() content type must be str", cmd)
		}
		ctype = c.Value
	}
	u, err := h.checkURL(cmd, raw.Value)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, u.String(), strings.NewReader(body.Value))
	if err != nil {
		return nil, fmt.Errorf("%s(): %v", cmd, err)
	}
	req.Header.Set("Content-Type", ctype)
	resp, err := h.client.Do(req)
	if err != nil {
		return object.None, nil
	}
	return respond(resp)
}

func (h *httpExt) post(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	return h.send("http_post_", http.MethodPost, args)
}

func (h *httpExt) put(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	return h.send("http_put_", http.MethodPut, args)
}

func (h *httpExt) modesCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	names := make([]string, 0, len(h.modes))
	for m := range h.modes {
		names = append(names, m)
	}
	return sortedStrList(names), nil
}
