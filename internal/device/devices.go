package device

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Info describes one audio device visible to PortAudio.
type Info struct {
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// ListDevices returns all audio devices. The PortAudio runtime must be
// initialized before calling.
func ListDevices() ([]Info, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultIn, _ := portaudio.DefaultInputDevice()
	defaultOut, _ := portaudio.DefaultOutputDevice()

	infos := make([]Info, 0, len(devices))
	for _, dev := range devices {
		infos = append(infos, Info{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			MaxOutputChannels: dev.MaxOutputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			DefaultInput:      defaultIn != nil && dev.Name == defaultIn.Name,
			DefaultOutput:     defaultOut != nil && dev.Name == defaultOut.Name,
		})
	}

	return infos, nil
}
