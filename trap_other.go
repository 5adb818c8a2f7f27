//go:build !(windows && amd64)

package mandragorafix

// NewNativeTrap is only implemented for windows/amd64.
func NewNativeTrap() (Trap, error) {
	return nil, ErrTrapUnsupported
}
