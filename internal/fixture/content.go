package fixture

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	headingSuffix = " - level 2"
	taskMarker    = "- [ ] "
	listMarker    = "- "
	tagToken      = "#task"
)

// ErrInvalidStride is returned when the task stride is less than one.
var ErrInvalidStride = errors.New("task stride must be at least 1")

// Basename returns the name of the fixture file with the given 1-based index, without extension.
func Basename(prefix string, fileIndex int) string {
	return prefix + "-" + strconv.Itoa(fileIndex)
}

// Content renders a fixture file: a level-1 heading, a level-2 heading and
// itemCount list lines. Every stride-th line (1-based) is a task line with a
// checkbox, the rest are plain list items carrying the same tag.
//
// A negative itemCount produces no body lines.
func Content(basename string, fileIndex, itemCount, stride int) (string, error) {
	if stride < 1 {
		return "", errors.Wrapf(ErrInvalidStride, "stride %d", stride)
	}

	var sb strings.Builder
	sb.WriteString("# " + basename + "\n\n")
	sb.WriteString("## " + basename + headingSuffix + "\n\n")

	set := strconv.Itoa(fileIndex)
	total := strconv.Itoa(max(itemCount, 0))
	for j := 1; j <= itemCount; j++ {
		if j%stride == 0 {
			sb.WriteString(taskMarker)
		} else {
			sb.WriteString(listMarker)
		}
		sb.WriteString(tagToken + " Set " + set + " Task " + strconv.Itoa(j) + " of " + total + "\n")
	}
	return sb.String(), nil
}
