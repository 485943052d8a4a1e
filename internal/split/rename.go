package split

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// RenameFunc applies a single rename in whatever namespace is being
// resequenced (worksheet names here, but nothing in this file knows that).
type RenameFunc func(oldName, newName string) error

// TwoPassRename renames a batch where the target-name set may overlap the
// source-name set (swaps, shifts). Pass one parks every source under a
// unique placeholder; pass two assigns the final names, so no intermediate
// state ever collides. When a final name is taken by something outside the
// plan, a counter suffix is appended and a warning logged rather than
// failing. The returned map records the name each source actually ended up
// with.
func TwoPassRename(plan map[string]string, taken func(string) bool, rename RenameFunc, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	final := map[string]string{}
	parked := map[string]string{} // temp name -> original name
	order := make([]string, 0, len(plan))

	for old, want := range plan {
		if old == want {
			final[old] = want
			continue
		}
		tmp := "tmp_" + uuid.NewString()[:8]
		if err := rename(old, tmp); err != nil {
			return final, fmt.Errorf("failed to park %q: %w", old, err)
		}
		parked[tmp] = old
		order = append(order, tmp)
	}

	assigned := map[string]bool{}
	for _, tmp := range order {
		old := parked[tmp]
		want := plan[old]
		name := want
		for n := 2; (taken != nil && taken(name)) || assigned[name]; n++ {
			name = fmt.Sprintf("%s_%d", want, n)
		}
		if name != want {
			logger.Warn("rename target collision, using fallback name",
				slog.String("wanted", want),
				slog.String("using", name))
		}
		if err := rename(tmp, name); err != nil {
			return final, fmt.Errorf("failed to finalize %q: %w", want, err)
		}
		assigned[name] = true
		final[old] = name
	}
	return final, nil
}
