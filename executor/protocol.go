package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/caffeineduck/nativebind/wasmhost"
)

// Guests call native exports by writing \x00NATIVE:{json}\x00 to stderr and
// reading one JSON line from stdin for the reply.
const (
	protocolPrefix = "\x00NATIVE:"
	protocolSuffix = "\x00"
)

type callRequest struct {
	ID     string `json:"id,omitempty"`
	Module string `json:"module"`
	Fn     string `json:"fn"`
	Args   []any  `json:"args"`
}

type callResponse struct {
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// resolver finds the exports object of a loaded module.
type resolver func(module string) (*wasmhost.Exports, bool)

// protocolHandler intercepts stderr to handle native calls.
// Regular stderr output passes through; protocol messages trigger calls.
type protocolHandler struct {
	ctx     context.Context
	resolve resolver
	logger  *zap.Logger

	replies *replyQueue
	done    chan struct{}

	mu         sync.Mutex
	realStderr bytes.Buffer
	buf        bytes.Buffer
	calls      int
}

func newProtocolHandler(ctx context.Context, resolve resolver, stdin io.Writer, logger *zap.Logger) *protocolHandler {
	p := &protocolHandler{
		ctx:     ctx,
		resolve: resolve,
		logger:  logger,
		replies: newReplyQueue(),
		done:    make(chan struct{}),
	}
	go p.writeReplies(stdin)
	return p
}

// writeReplies delivers replies in call order. It stops writing at the
// first error, which happens once the guest has exited and stdin is closed.
func (p *protocolHandler) writeReplies(w io.Writer) {
	defer close(p.done)
	for {
		reply, ok := p.replies.pop()
		if !ok {
			return
		}
		if _, err := w.Write(reply); err != nil {
			p.replies.discard()
			return
		}
	}
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	for {
		content := p.buf.String()
		idx := findNextMessage(content)
		if idx == -1 {
			// Keep a trailing partial prefix for the next write.
			keep := partialPrefixLen(content)
			p.realStderr.WriteString(content[:len(content)-keep])
			p.buf.Reset()
			p.buf.WriteString(content[len(content)-keep:])
			break
		}

		p.realStderr.WriteString(content[:idx])

		payload, remaining, ok := extractMessage(content, idx, protocolPrefix)
		p.buf.Reset()
		p.buf.WriteString(remaining)
		if !ok {
			break
		}

		var req callRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			p.respond(callResponse{Error: "invalid call format"})
			continue
		}

		p.calls++
		resp := p.handleCall(req)
		resp.ID = req.ID
		p.respond(resp)
	}

	return len(data), nil
}

// respond queues a reply. It never blocks, so a guest that writes many
// calls before reading stdin cannot stall its own stderr writes.
func (p *protocolHandler) respond(resp callResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(callResponse{ID: resp.ID, Error: "encode result: " + err.Error()})
	}
	p.replies.push(append(data, '\n'))
}

func (p *protocolHandler) handleCall(req callRequest) callResponse {
	exports, ok := p.resolve(req.Module)
	if !ok {
		return callResponse{Error: "unknown module: " + req.Module}
	}

	result, err := exports.Call(p.ctx, req.Fn, req.Args...)
	if err != nil {
		if errors.Is(err, wasmhost.ErrUnknownExport) {
			return callResponse{Error: "unknown function: " + req.Module + "." + req.Fn}
		}
		p.logger.Debug("native call failed",
			zap.String("module", req.Module),
			zap.String("fn", req.Fn),
			zap.Error(err))
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

// Stderr returns the guest's stderr with protocol messages removed.
func (p *protocolHandler) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realStderr.String() + p.buf.String()
}

// Calls returns the number of native calls handled.
func (p *protocolHandler) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// close stops reply delivery and waits for the writer to finish. Stdin
// must be closed first so a pending write can fail.
func (p *protocolHandler) close() {
	p.replies.close()
	<-p.done
}

// replyQueue is an unbounded FIFO of encoded replies.
type replyQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   [][]byte
	closed  bool
	dropped bool
}

func newReplyQueue() *replyQueue {
	q := &replyQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *replyQueue) push(b []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.dropped {
		return
	}
	q.items = append(q.items, b)
	q.cond.Signal()
}

// pop waits for the next reply. ok is false once the queue is closed and
// empty.
func (q *replyQueue) pop() (b []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	b = q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return b, true
}

// discard drops queued replies and ignores later ones.
func (q *replyQueue) discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropped = true
	q.items = nil
}

// pending returns the number of undelivered replies.
func (q *replyQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *replyQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// findNextMessage returns the index of the next protocol message, or -1.
func findNextMessage(content string) int {
	return strings.Index(content, protocolPrefix)
}

// extractMessage splits the message starting at idx into its payload and
// the content after it. ok is false while the message is incomplete, in
// which case remaining holds the partial message.
func extractMessage(content string, idx int, prefix string) (payload, remaining string, ok bool) {
	start := idx + len(prefix)
	end := strings.Index(content[start:], protocolSuffix)
	if end == -1 {
		return "", content[idx:], false
	}
	return content[start : start+end], content[start+end+len(protocolSuffix):], true
}

// partialPrefixLen reports how many trailing bytes of content could be the
// start of a protocol prefix split across writes.
func partialPrefixLen(content string) int {
	for n := min(len(protocolPrefix)-1, len(content)); n > 0; n-- {
		if strings.HasPrefix(protocolPrefix, content[len(content)-n:]) {
			return n
		}
	}
	return 0
}
