// Package recovery derives residual manifests from failed attempts.
//
// The remote consumer acknowledges each file as it is fully written;
// anything after a stream's last acknowledgment is presumed undelivered.
// Recovery is a pure set-difference over those acknowledgments: it never
// mutates the input manifest and never rolls anything back. Partial byte
// ranges left remotely are re-detected as size mismatches by the next
// inventory pass.
package recovery

import (
	"github.com/milmillin/copyem/types"
)

// Residual returns a new manifest holding the files not proven delivered
// by the attempt's stream outcomes. Successful streams count their whole
// assignment as delivered; failed streams count only acknowledged files.
// Manifest order is preserved.
//
// An empty residual after a reported failure means every file actually
// landed (the fault hit after the data, e.g. a shutdown race) and the run
// is a full success.
func Residual(m types.Manifest, outcomes []types.StreamOutcome) types.Manifest {
	delivered := make(map[string]struct{})
	for _, o := range outcomes {
		for path := range o.DeliveredSet() {
			delivered[path] = struct{}{}
		}
	}
	return m.Without(delivered)
}
