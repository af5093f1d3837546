package versfs

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"bazil.org/fuse"
	"github.com/dendrascience/versfs/chain"
	"github.com/stretchr/testify/assert"
)

func TestToErrno(t *testing.T) {
	notFound := &chain.Error{Kind: chain.KindNotFound, Op: "open", Path: "/a",
		Err: &os.PathError{Op: "open", Path: "/a", Err: syscall.ENOENT}}

	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{"not found", notFound, syscall.ENOENT},
		{"already exists", &chain.Error{Kind: chain.KindAlreadyExists}, syscall.EEXIST},
		{"snapshot slot taken", &chain.Error{Kind: chain.KindConflict}, syscall.EEXIST},
		{"inconsistent over not found", &chain.Error{Kind: chain.KindInconsistent, Err: notFound}, syscall.EIO},
		{"io failure with errno", &chain.Error{Kind: chain.KindIOFailure,
			Err: &os.PathError{Op: "write", Path: "/a", Err: syscall.ENOSPC}}, syscall.ENOSPC},
		{"io failure without errno", &chain.Error{Kind: chain.KindIOFailure, Err: errors.New("short read")}, syscall.EIO},
		{"reserved name", &chain.Error{Kind: chain.KindReservedName, Op: "create", Path: "/a,v"}, syscall.EINVAL},
		{"relative path", chain.ErrRelativePath, syscall.EINVAL},
		{"bare errno", syscall.ENOTEMPTY, syscall.ENOTEMPTY},
		{"plain not exist", os.ErrNotExist, syscall.ENOENT},
		{"wrapped permission", fmt.Errorf("chmod: %w", os.ErrPermission), syscall.EACCES},
		{"unknown", errors.New("boom"), syscall.EIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, fuse.Errno(tt.want), toErrno(tt.err))
		})
	}
}
