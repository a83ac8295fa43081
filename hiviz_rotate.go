//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package hiviz

import (
	"errors"
	"fmt"
	"os"
)

// rotation describes the rotation policy of a log file. It's consulted right
// before every write and never held across writes.
type rotation struct {
	// path is the active log file.
	path string
	// maxBytes is the size threshold, <= 0 disables rotation.
	maxBytes int64
	// backupCount is the number of backups kept, 0 truncates the active file
	// instead.
	backupCount int
}

// backupName returns the name of the i-th backup of path.
func backupName(path string, i int) string {
	return fmt.Sprintf("%s.%d", path, i)
}

// exists reports whether path exists.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// renameFile renames src to dst replacing dst if it already exists.
func renameFile(src, dst string) error {
	// Rename doesn't replace an existing destination on every platform.
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", src, dst, err)
	}
	return nil
}

// maybeRotate rotates the log file if it's grown beyond the threshold. It
// returns whether a rotation was attempted and every failure met while doing
// so, a failed step doesn't stop the remaining ones.
func maybeRotate(r rotation) (bool, error) {
	if r.maxBytes <= 0 || r.path == "" {
		return false, nil
	}

	info, err := os.Stat(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat log file: %w", err)
	}

	if info.Size() < r.maxBytes {
		return false, nil
	}

	if r.backupCount <= 0 {
		if err := os.Truncate(r.path, 0); err != nil {
			return true, fmt.Errorf("failed to truncate log file: %w", err)
		}
		return true, nil
	}

	var errs []error

	for i := r.backupCount - 1; i >= 1; i-- {
		src := backupName(r.path, i)
		if !exists(src) {
			continue
		}
		if err := renameFile(src, backupName(r.path, i+1)); err != nil {
			errs = append(errs, err)
		}
	}

	if err := renameFile(r.path, backupName(r.path, 1)); err != nil {
		errs = append(errs, err)
	}

	logFile, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to recreate log file: %w", err))
	} else {
		logFile.Close()
	}

	return true, errors.Join(errs...)
}
