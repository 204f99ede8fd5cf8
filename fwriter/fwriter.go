package fwriter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrFinished SafeWriter已经提交或放弃.
var ErrFinished = errors.New("fwriter: writer already committed or aborted")

// SafeWriter 原子文件写入器, 可以作为WriteBuffer的ByteSink.
// 数据先写入临时文件, Commit/Close时sync并重命名为目标文件, 读者不会看到写了一半的文件.
// 同一路径同时只允许一个SafeWriter.
type SafeWriter struct {
	flock    *FLock
	tmp      *os.File
	fn       string
	finished bool
}

// NewSafeWriter 新建SafeWriter对象.
func NewSafeWriter(fn string) (*SafeWriter, error) {
	if err := os.MkdirAll(filepath.Dir(fn), 0750); err != nil {
		return nil, err
	}

	flock := NewFLock(fn)
	if err := flock.Acquire(); err != nil {
		return nil, err
	}

	tmp, err := os.OpenFile(fmt.Sprintf("%s.tmp%d", fn, time.Now().UnixNano()), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		flock.Release() // nolint
		return nil, err
	}

	return &SafeWriter{
		flock: flock,
		tmp:   tmp,
		fn:    fn,
	}, nil
}

// Write 写字节流到临时文件.
func (w *SafeWriter) Write(p []byte) (int, error) {
	if w.finished {
		return 0, ErrFinished
	}
	return w.tmp.Write(p)
}

// Commit 持久化临时文件并替换目标文件.
func (w *SafeWriter) Commit() error {
	if w.finished {
		return ErrFinished
	}
	defer w.exit()
	if err := w.tmp.Sync(); err != nil {
		return err
	}
	if err := w.tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(w.tmp.Name(), w.fn); err != nil {
		return err
	}
	log.Debug().Msgf("committed %s", w.fn)
	return nil
}

// Close 等同于Commit, 使WriteBuffer.Close在flush之后提交文件. 重复调用返回nil.
func (w *SafeWriter) Close() error {
	if w.finished {
		return nil
	}
	return w.Commit()
}

// Abort 放弃当前写操作, 目标文件保持不变.
func (w *SafeWriter) Abort() {
	if w.finished {
		return
	}
	w.exit()
}

func (w *SafeWriter) exit() {
	w.finished = true
	w.tmp.Close()           // nolint
	os.Remove(w.tmp.Name()) // nolint
	if err := w.flock.Release(); err != nil {
		log.Warn().Err(err).Msgf("failed to release lock of %s", w.fn)
	}
}
