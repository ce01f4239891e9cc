package graph

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/runtime"
	"lukechampine.com/blake3"
)

// Delta describes what merging a local File into a remote one would change.
// Every list is sorted by node name.
type Delta struct {
	Added      []string `json:"added" yaml:"added"`
	Modified   []string `json:"modified" yaml:"modified"`
	Unchanged  []string `json:"unchanged" yaml:"unchanged"`
	RemoteOnly []string `json:"remote_only" yaml:"remote_only"`
}

// IsEmpty reports whether the merge would change nothing.
func (d Delta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0
}

// Diff compares two Files node by node using node digests.
func Diff(remote, local runtime.File) (Delta, error) {
	remoteDigests, err := digests(remote)
	if err != nil {
		return Delta{}, fmt.Errorf("remote file: %w", err)
	}
	localDigests, err := digests(local)
	if err != nil {
		return Delta{}, fmt.Errorf("local file: %w", err)
	}

	var d Delta
	for name, digest := range localDigests {
		remoteDigest, ok := remoteDigests[name]
		switch {
		case !ok:
			d.Added = append(d.Added, name)
		case remoteDigest != digest:
			d.Modified = append(d.Modified, name)
		default:
			d.Unchanged = append(d.Unchanged, name)
		}
	}
	for name := range remoteDigests {
		if _, ok := localDigests[name]; !ok {
			d.RemoteOnly = append(d.RemoteOnly, name)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Modified)
	sort.Strings(d.Unchanged)
	sort.Strings(d.RemoteOnly)
	return d, nil
}

// FileDigest fingerprints a File from its node digests in order.
func FileDigest(file runtime.File) (string, error) {
	h := blake3.New(32, nil)
	for _, it := range file.Nodes {
		d, err := node.Digest(it)
		if err != nil {
			return "", err
		}
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func digests(file runtime.File) (map[string]string, error) {
	out := make(map[string]string, len(file.Nodes))
	for _, it := range file.Nodes {
		d, err := node.Digest(it)
		if err != nil {
			return nil, err
		}
		out[it.Core.Name] = d
	}
	return out, nil
}
