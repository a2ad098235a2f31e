package compute

import "fmt"

// OpenCLName is the registry name of the OpenCL back end.
const OpenCLName = "opencl"

func init() {
	Register(openclBackend{})
}

// openclBackend is registered so that configurations naming it fail with a
// clear error. This build carries no OpenCL runtime bindings.
type openclBackend struct{}

func (openclBackend) Name() string    { return OpenCLName }
func (openclBackend) Available() bool { return false }

func (openclBackend) Devices() ([]DeviceInfo, error) {
	return nil, fmt.Errorf("%w: %s runtime not linked", ErrBackendUnavailable, OpenCLName)
}

func (openclBackend) NewContext(int) (Context, error) {
	return nil, fmt.Errorf("%w: %s runtime not linked", ErrBackendUnavailable, OpenCLName)
}
