package libgopro

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/icza/bitio"
	"github.com/samber/lo"
)

// DefaultHost is the address of the camera on its own WiFi access point
const DefaultHost = "10.5.5.9"

// MediaPort is the port of the cameras media web server
const MediaPort = 8080

// Command endpoints
const (
	PathSession    = "/bacpac/sd"
	PathStatus     = "/camera/se"
	PathDeviceInfo = "/camera/cv"
	PathMode       = "/camera/CM"
	PathShutter    = "/bacpac/SH"
	PathMediaList  = "/gp/gpMediaList"
)

// Byte offsets within a status response
const (
	statusMenuItem   = 1
	statusBattery    = 19
	statusPhotosLeft = 21
	statusPhotoCount = 23
	statusVideosLeft = 25
	statusVideoCount = 27
	statusRecording  = 29

	// StatusLength is the minimum length of a decodable status response
	StatusLength = statusRecording + 1

	deviceInfoFirmwareLength = 3
)

// Mode is a capture mode that can be selected with SetMode
type Mode uint8

const (
	ModeVideo     Mode = 0
	ModePhoto     Mode = 1
	ModeBurst     Mode = 2
	ModeTimelapse Mode = 3
	// ModeSettings is only ever reported as MenuItem, it cannot be selected
	ModeSettings Mode = 7
)

var modeNames = map[Mode]string{
	ModeVideo:     "video",
	ModePhoto:     "photo",
	ModeBurst:     "burst",
	ModeTimelapse: "timelapse",
	ModeSettings:  "settings",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(m))
}

// ParseMode returns the selectable mode called name
func ParseMode(name string) (Mode, error) {
	mode, ok := lo.Invert(modeNames)[strings.ToLower(name)]
	if !ok || mode > ModeTimelapse {
		return 0, fmt.Errorf("unknown mode %q, use one of %s", name, strings.Join(SelectableModes(), ", "))
	}
	return mode, nil
}

// SelectableModes lists the names accepted by ParseMode
func SelectableModes() []string {
	modes := lo.Filter(lo.Keys(modeNames), func(m Mode, _ int) bool {
		return m <= ModeTimelapse
	})
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return lo.Map(modes, func(m Mode, _ int) string { return m.String() })
}

// Shutter parameter values
const (
	shutterStop    = 0x00
	shutterTrigger = 0x01
)

// Response is the raw byte sequence returned by one command request
type Response []byte

func (r Response) need(n int) error {
	if len(r) < n {
		return shortResponse(n, len(r))
	}
	return nil
}

// prefixedString reads a length byte at off followed by that many bytes.
// It returns the string and the offset just after it.
func (r Response) prefixedString(off int) (string, int, error) {
	if err := r.need(off + 1); err != nil {
		return "", 0, err
	}
	end := off + 1 + int(r[off])
	if err := r.need(end); err != nil {
		return "", 0, err
	}
	return latin1(r[off+1 : end]), end, nil
}

// Status is a snapshot of the cameras state as reported by the status endpoint
type Status struct {
	MenuItem   Mode `json:"menu_item"`
	Battery    int  `json:"battery"`
	PhotosLeft int  `json:"photos_left"`
	PhotoCount int  `json:"photo_count"`
	VideosLeft int  `json:"videos_left"`
	VideoCount int  `json:"video_count"`
	Recording  int  `json:"recording"`
}

// IsRecording reports whether the camera is currently capturing video
func (s *Status) IsRecording() bool {
	return s.Recording == 1
}

// Fields returns the snapshot keyed by the field names the camera documentation uses
func (s *Status) Fields() map[string]int {
	return map[string]int{
		"MenuItem":   int(s.MenuItem),
		"Battery":    s.Battery,
		"PhotosLeft": s.PhotosLeft,
		"PhotoCount": s.PhotoCount,
		"VideosLeft": s.VideosLeft,
		"VideoCount": s.VideoCount,
		"Recording":  s.Recording,
	}
}

// DeviceInfo holds the camera name and firmware version
type DeviceInfo struct {
	Name     string `json:"name"`
	Firmware string `json:"firmware"`
}

// ParseSession extracts the session token from a session response.
// The first two bytes are a header, the rest is the token.
func ParseSession(r Response) (string, error) {
	if err := r.need(2); err != nil {
		return "", err
	}
	token := latin1(r[2:])
	if token == "" {
		return "", ErrNoSession
	}
	return token, nil
}

// ParseStatus decodes a status response. With legacy set, the counter pairs
// are combined the way older camera apps did it: each byte rendered
// as hex without zero padding, concatenated and parsed again.
func ParseStatus(r Response, legacy bool) (*Status, error) {
	if err := r.need(StatusLength); err != nil {
		return nil, err
	}

	counters := [4]int{}
	if legacy {
		for i := range counters {
			off := statusPhotosLeft + 2*i
			counters[i] = legacyCounter(r[off], r[off+1])
		}
	} else {
		reader := bitio.NewReader(bytes.NewReader(r[statusPhotosLeft : statusVideoCount+2]))
		for i := range counters {
			v, err := reader.ReadBits(16)
			if err != nil {
				return nil, err
			}
			counters[i] = int(v)
		}
	}

	return &Status{
		MenuItem:   Mode(r[statusMenuItem]),
		Battery:    int(r[statusBattery]),
		PhotosLeft: counters[0],
		PhotoCount: counters[1],
		VideosLeft: counters[2],
		VideoCount: counters[3],
		Recording:  int(r[statusRecording]),
	}, nil
}

func legacyCounter(high, low byte) int {
	digits := strconv.FormatUint(uint64(high), 16) + strconv.FormatUint(uint64(low), 16)
	// at most four hex digits, cannot fail
	v, _ := strconv.ParseUint(digits, 16, 32)
	return int(v)
}

// ParseDeviceInfo decodes a camera value response: a firmware length byte at
// offset 3, the firmware string, a name length byte and the name.
func ParseDeviceInfo(r Response) (*DeviceInfo, error) {
	firmware, next, err := r.prefixedString(deviceInfoFirmwareLength)
	if err != nil {
		return nil, err
	}
	name, _, err := r.prefixedString(next)
	if err != nil {
		return nil, err
	}
	return &DeviceInfo{Name: name, Firmware: firmware}, nil
}

// CreateSessionResponse creates a session response carrying token
func CreateSessionResponse(token string) []byte {
	payload := latin1Bytes(token)

	buf := &bytes.Buffer{}
	w := bitio.NewWriter(buf)
	w.WriteByte(0x00)
	w.WriteByte(byte(len(payload)))
	w.Write(payload)
	w.Close()
	return buf.Bytes()
}

// CreateStatusResponse creates a status response for status
func CreateStatusResponse(status Status) []byte {
	buf := &bytes.Buffer{}
	w := bitio.NewWriter(buf)
	w.WriteByte(0x00)
	w.WriteByte(byte(status.MenuItem))
	w.Write(make([]byte, statusBattery-statusMenuItem-1))
	w.WriteByte(byte(status.Battery))
	w.WriteByte(0x00)
	w.WriteBits(uint64(status.PhotosLeft), 16)
	w.WriteBits(uint64(status.PhotoCount), 16)
	w.WriteBits(uint64(status.VideosLeft), 16)
	w.WriteBits(uint64(status.VideoCount), 16)
	w.WriteByte(byte(status.Recording))
	w.WriteByte(0x00)
	w.Close()
	return buf.Bytes()
}

// CreateDeviceInfoResponse creates a camera value response for info.
// Strings longer than 255 bytes are truncated.
func CreateDeviceInfoResponse(info DeviceInfo) []byte {
	firmware := truncate(latin1Bytes(info.Firmware))
	name := truncate(latin1Bytes(info.Name))

	buf := &bytes.Buffer{}
	w := bitio.NewWriter(buf)
	w.Write([]byte{0x00, 0x01, 0x00})
	w.WriteByte(byte(len(firmware)))
	w.Write(firmware)
	w.WriteByte(byte(len(name)))
	w.Write(name)
	w.Close()
	return buf.Bytes()
}

func truncate(b []byte) []byte {
	if len(b) > 0xFF {
		return b[:0xFF]
	}
	return b
}

// latin1 maps every byte to the code point of the same value
func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func latin1Bytes(s string) []byte {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	return b
}
