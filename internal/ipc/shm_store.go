package ipc

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/config"
)

const counterSize = 8 // one uint64

// shmStore stands in for a shared-memory segment: each cell is a regular
// file, guarded by a sibling ".lock" file taken with flock(2). The id
// registry is a third sibling file, "<path>.id", holding a decimal ASCII
// integer, written once by the creator and read-only thereafter — any
// process can attach by path without holding a reference to the file
// that created it.
type shmStore struct{}

func newShmStore(_ *config.Config) (Store, error) {
	return shmStore{}, nil
}

func idPath(path string) string   { return path + ".id" }
func lockPath(path string) string { return path + ".lock" }

func (s shmStore) lock(path string) (*os.File, error) {
	f, err := os.OpenFile(lockPath(path), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, astriderr.New(astriderr.ResourceExhausted, "ipc.lock", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, astriderr.New(astriderr.LockTimeout, "ipc.lock", err)
	}
	return f, nil
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	_ = f.Close()
}

func (s shmStore) CreateCell(_ context.Context, path string, size int) (uint64, error) {
	lf, err := s.lock(path)
	if err != nil {
		return 0, err
	}
	defer unlock(lf)

	if id, ok, err := readID(path); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return 0, astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCell", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return 0, astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCell", err)
	}
	_ = f.Close()

	id := hashPath(path)
	if err := writeIDAtomic(path, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s shmStore) SetCell(_ context.Context, path string, data []byte) error {
	lf, err := s.lock(path)
	if err != nil {
		return err
	}
	defer unlock(lf)

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return astriderr.New(astriderr.NotFound, "ipc.SetCell", err)
		}
		return astriderr.New(astriderr.ResourceExhausted, "ipc.SetCell", err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, 0); err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "ipc.SetCell", err)
	}
	return nil
}

func (s shmStore) GetCell(_ context.Context, path string) ([]byte, error) {
	lf, err := s.lock(path)
	if err != nil {
		return nil, err
	}
	defer unlock(lf)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, astriderr.New(astriderr.NotFound, "ipc.GetCell", err)
		}
		return nil, astriderr.New(astriderr.ResourceExhausted, "ipc.GetCell", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, astriderr.New(astriderr.ResourceExhausted, "ipc.GetCell", err)
	}
	data := make([]byte, info.Size())
	if _, err := f.ReadAt(data, 0); err != nil {
		return nil, astriderr.New(astriderr.ResourceExhausted, "ipc.GetCell", err)
	}
	return data, nil
}

func (s shmStore) DestroyCell(_ context.Context, path string) error {
	lf, err := s.lock(path)
	if err != nil {
		return err
	}
	defer unlock(lf)

	_ = os.Remove(path)
	_ = os.Remove(idPath(path))
	_ = os.Remove(lockPath(path))
	return nil
}

func (s shmStore) CreateCounter(ctx context.Context, path string) error {
	lf, err := s.lock(path)
	if err != nil {
		return err
	}
	defer unlock(lf)

	if _, ok, err := readID(path); err != nil {
		return err
	} else if ok {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCounter", err)
	}
	if err := f.Truncate(counterSize); err != nil {
		_ = f.Close()
		return astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCounter", err)
	}
	var buf [counterSize]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		_ = f.Close()
		return astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCounter", err)
	}
	_ = f.Close()

	return writeIDAtomic(path, hashPath(path))
}

// ReadAndIncrement holds the cell's flock for the whole read-modify-write,
// so concurrent callers across processes each observe a distinct value.
func (s shmStore) ReadAndIncrement(_ context.Context, path string) (uint64, error) {
	lf, err := s.lock(path)
	if err != nil {
		return 0, err
	}
	defer unlock(lf)

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, astriderr.New(astriderr.NotFound, "ipc.ReadAndIncrement", err)
		}
		return 0, astriderr.New(astriderr.ResourceExhausted, "ipc.ReadAndIncrement", err)
	}
	defer f.Close()

	var buf [counterSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, astriderr.New(astriderr.ResourceExhausted, "ipc.ReadAndIncrement", err)
	}
	val := binary.NativeEndian.Uint64(buf[:])

	binary.NativeEndian.PutUint64(buf[:], val+1)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return 0, astriderr.New(astriderr.ResourceExhausted, "ipc.ReadAndIncrement", err)
	}
	return val, nil
}

func (s shmStore) DestroyCounter(ctx context.Context, path string) error {
	return s.DestroyCell(ctx, path)
}

func (s shmStore) Close() error {
	return nil
}

func readID(path string) (uint64, bool, error) {
	data, err := os.ReadFile(idPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, astriderr.New(astriderr.ResourceExhausted, "ipc.readID", err)
	}
	id, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, astriderr.New(astriderr.BadMessage, "ipc.readID", err)
	}
	return id, true, nil
}

// writeIDAtomic writes the decimal id to a temp file and renames it into
// place, so no reader ever observes a partially-written id file.
func writeIDAtomic(path string, id uint64) error {
	tmp := idPath(path) + fmt.Sprintf(".tmp.%d", os.Getpid())
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(id, 10)), 0o644); err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "ipc.writeIDAtomic", err)
	}
	if err := os.Rename(tmp, idPath(path)); err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "ipc.writeIDAtomic", err)
	}
	return nil
}

func hashPath(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64()
}
