//go:build !(linux || darwin || freebsd)

package trainer

import "errors"

const addressSpaceLimitSupported = false

func limitAddressSpace(uint64) error {
	return errors.New("address space limits are not supported on this platform")
}
