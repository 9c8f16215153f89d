// Package walk provides recursive directory traversal over an injected
// filesystem.
//
// The traversal is parameterized by plain callbacks instead of a stateful
// visitor object: EnterDir fires before a directory's children, File fires
// for each regular file, and LeaveDir fires after all children have been
// visited. LeaveDir is where callers prune directories they emptied.
// Sibling order is whatever the filesystem reports; callers must not rely
// on it.
package walk

import (
	"os"
	"path/filepath"

	"github.com/hupe1980/imagecache/internal/fs"
)

// Visitor holds the traversal callbacks. Any nil callback is skipped.
type Visitor struct {
	// EnterDir is called before a directory's children are visited.
	EnterDir func(path string) error

	// File is called for each regular file.
	File func(path string, info os.FileInfo) error

	// LeaveDir is called after a directory's children have been visited.
	LeaveDir func(path string) error
}

// Walk traverses the tree rooted at root. The root itself gets
// EnterDir/LeaveDir calls like any other directory. A missing root is not
// an error: the walk simply visits nothing. Unreadable directories and
// files that disappear mid-walk are skipped; cache contents may change
// underneath the walker at any time.
func Walk(fsys fs.FileSystem, root string, v Visitor) error {
	info, err := fsys.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		if v.File != nil {
			return v.File(root, info)
		}
		return nil
	}
	return walkDir(fsys, root, v)
}

func walkDir(fsys fs.FileSystem, dir string, v Visitor) error {
	if v.EnterDir != nil {
		if err := v.EnterDir(dir); err != nil {
			return err
		}
	}

	// An unreadable or vanished directory yields no children but does not
	// stop the traversal: its siblings are still visited and its LeaveDir
	// still fires. Only visitor callbacks can abort the walk.
	entries, _ := fsys.ReadDir(dir)

	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := walkDir(fsys, child, v); err != nil {
				return err
			}
			continue
		}
		if v.File == nil {
			continue
		}
		info, err := fsys.Stat(child)
		if err != nil {
			continue // vanished mid-walk
		}
		if err := v.File(child, info); err != nil {
			return err
		}
	}

	if v.LeaveDir != nil {
		return v.LeaveDir(dir)
	}
	return nil
}
