package process

import (
	"os"
	"sync"
)

// pipeEnd owns one end of an OS pipe. Close releases the descriptor once;
// later calls return the first result.
type pipeEnd struct {
	f    *os.File
	once sync.Once
	err  error
}

func newPipeEnd(f *os.File) *pipeEnd {
	return &pipeEnd{f: f}
}

func (p *pipeEnd) Read(b []byte) (int, error) {
	return p.f.Read(b)
}

func (p *pipeEnd) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() {
		p.err = p.f.Close()
	})
	return p.err
}

// newPipe returns owned read and write ends of a fresh pipe.
func newPipe() (r, w *pipeEnd, err error) {
	rf, wf, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return newPipeEnd(rf), newPipeEnd(wf), nil
}

// closeAll closes every non-nil end, ignoring errors. Used on failure paths.
func closeAll(ends ...*pipeEnd) {
	for _, e := range ends {
		if e != nil {
			_ = e.Close()
		}
	}
}
