package device

import (
	"os"
	"runtime"

	"github.com/google/uuid"
	"snapvault/internal/model"
)

// Settings is the slice of local persistence the identity needs: the device
// id is minted once and reused on every later run.
type Settings interface {
	DeviceID() (string, error)
	SetDeviceID(id string) error
}

// Collect assembles the identity presented during registration.
func Collect(settings Settings, appVersion string) (model.DeviceIdentity, error) {
	id, err := settings.DeviceID()
	if err != nil {
		return model.DeviceIdentity{}, err
	}
	if id == "" {
		id = uuid.NewString()
		if err := settings.SetDeviceID(id); err != nil {
			return model.DeviceIdentity{}, err
		}
	}

	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "unknown-device"
	}

	return model.DeviceIdentity{
		DeviceID:   id,
		DeviceName: name,
		Platform:   runtime.GOOS,
		AppVersion: appVersion,
	}, nil
}
