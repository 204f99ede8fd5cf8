package fwriter

import (
	"errors"
	"os"
	"syscall"
)

// ErrLocked 文件已被其他写入者锁定.
var ErrLocked = errors.New("fwriter: file has been locked by another writer")

// FLock 基于flock(2)的文件锁, 锁文件为目标文件名加.lock后缀.
type FLock struct {
	fn string
	fd int
}

// NewFLock 新建FLock对象.
func NewFLock(fn string) *FLock {
	return &FLock{
		fn: fn + ".lock",
		fd: -1,
	}
}

// File 返回锁文件的路径.
func (l *FLock) File() string {
	return l.fn
}

// Acquire 以非阻塞方式获取排他锁, 锁已被持有时返回ErrLocked.
func (l *FLock) Acquire() error {
	fd, err := syscall.Open(l.fn, syscall.O_CREAT|syscall.O_RDONLY, 0600)
	if err != nil {
		return err
	}
	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		// 需要关闭由多余的Flock操作打开的文件句柄
		syscall.Close(fd) // nolint
		if err == syscall.EWOULDBLOCK {
			return ErrLocked
		}
		return err
	}
	l.fd = fd
	return nil
}

// Release 释放文件锁并删除锁文件.
func (l *FLock) Release() error {
	if l.fd < 0 {
		return nil
	}
	// remove while still holding the lock, so no other writer locks an unlinked file
	rmErr := os.Remove(l.fn)
	err := syscall.Close(l.fd)
	l.fd = -1
	if err != nil {
		return err
	}
	if rmErr != nil && !os.IsNotExist(rmErr) {
		return rmErr
	}
	return nil
}
