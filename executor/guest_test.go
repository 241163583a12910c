package executor_test

import "encoding/binary"

// guest assembles a small WASI program for executor tests. It writes
// stdout, then writes each stderr chunk as its own iovec in one fd_write,
// then reads and echoes replies lines from stdin to stdout, then spins or
// exits as configured.
type guest struct {
	stdout  string
	stderr  []string
	replies int
	spin    bool
	exit    bool
	code    int32
}

const (
	nwrittenAddr = 1020
	readIovAddr  = 2048
	echoIovAddr  = 2056
	nreadAddr    = 2064
	readBufAddr  = 32768
	readBufSize  = 4096
	dataBase     = 4096
)

// Function indices: imports first, then _start.
const (
	fnFdWrite  = 0
	fnFdRead   = 1
	fnProcExit = 2
	fnStart    = 3
)

func (g guest) wasm() []byte {
	var iovs, data []byte
	addIov := func(s string) {
		iovs = binary.LittleEndian.AppendUint32(iovs, uint32(dataBase+len(data)))
		iovs = binary.LittleEndian.AppendUint32(iovs, uint32(len(s)))
		data = append(data, s...)
	}

	var body [][]byte
	if g.stdout != "" {
		first := len(iovs)
		addIov(g.stdout)
		body = append(body, fdWrite(1, first, 1))
	}
	if len(g.stderr) > 0 {
		first := len(iovs)
		for _, s := range g.stderr {
			addIov(s)
		}
		body = append(body, fdWrite(2, first, len(g.stderr)))
	}
	for i := 0; i < g.replies; i++ {
		body = append(body, i32(0), i32(readIovAddr), i32(1), i32(nreadAddr), call(fnFdRead), []byte{0x1a})
		// echo iov length = nread
		body = append(body, i32(echoIovAddr+4), i32(nreadAddr), []byte{0x28, 0x02, 0x00, 0x36, 0x02, 0x00})
		body = append(body, fdWrite(1, echoIovAddr, 1))
	}
	if g.spin {
		body = append(body, []byte{0x03, 0x40, 0x0c, 0x00, 0x0b}) // loop { br 0 }
	}
	if g.exit {
		body = append(body, i32(g.code), call(fnProcExit))
	}

	var bufIovs []byte
	for _, v := range []uint32{readBufAddr, readBufSize, readBufAddr, 0} {
		bufIovs = binary.LittleEndian.AppendUint32(bufIovs, v)
	}

	i32x4 := []byte{0x04, 0x7f, 0x7f, 0x7f, 0x7f}
	types := vec(
		cat([]byte{0x60}, i32x4, []byte{0x01, 0x7f}), // (i32 i32 i32 i32) -> i32
		[]byte{0x60, 0x00, 0x00},                     // () -> ()
		[]byte{0x60, 0x01, 0x7f, 0x00},               // (i32) -> ()
	)
	imports := vec(
		cat(str("wasi_snapshot_preview1"), str("fd_write"), []byte{0x00, 0x00}),
		cat(str("wasi_snapshot_preview1"), str("fd_read"), []byte{0x00, 0x00}),
		cat(str("wasi_snapshot_preview1"), str("proc_exit"), []byte{0x00, 0x02}),
	)
	funcs := vec([]byte{0x01})
	memory := vec([]byte{0x00, 0x01})
	exports := vec(
		cat(str("memory"), []byte{0x02, 0x00}),
		cat(str("_start"), []byte{0x00, fnStart}),
	)
	code := cat([]byte{0x00}, cat(body...), []byte{0x0b})
	codes := vec(cat(uleb(uint32(len(code))), code))
	segments := vec(
		cat([]byte{0x00}, i32(0), []byte{0x0b}, bytesVec(iovs)),
		cat([]byte{0x00}, i32(readIovAddr), []byte{0x0b}, bytesVec(bufIovs)),
		cat([]byte{0x00}, i32(dataBase), []byte{0x0b}, bytesVec(data)),
	)

	return cat(
		[]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
		section(1, types),
		section(2, imports),
		section(3, funcs),
		section(5, memory),
		section(7, exports),
		section(10, codes),
		section(11, segments),
	)
}

func fdWrite(fd int32, iovAddr, n int) []byte {
	return cat(i32(fd), i32(int32(iovAddr)), i32(int32(n)), i32(nwrittenAddr), call(fnFdWrite), []byte{0x1a})
}

func call(idx byte) []byte { return []byte{0x10, idx} }

func i32(v int32) []byte { return append([]byte{0x41}, sleb(v)...) }

func section(id byte, body []byte) []byte {
	return cat([]byte{id}, uleb(uint32(len(body))), body)
}

func vec(items ...[]byte) []byte {
	return cat(uleb(uint32(len(items))), cat(items...))
}

func bytesVec(b []byte) []byte { return cat(uleb(uint32(len(b))), b) }

func str(s string) []byte { return bytesVec([]byte(s)) }

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		out = append(out, c)
		if done {
			return out
		}
	}
}
