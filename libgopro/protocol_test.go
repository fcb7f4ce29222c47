package libgopro

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func statusBytes(set map[int]byte) Response {
	r := make(Response, StatusLength+1)
	for i, v := range set {
		r[i] = v
	}
	return r
}

func TestParseSession(t *testing.T) {
	token, err := ParseSession(Response{0x00, 0x09, 'g', 'o', 'p', 'r', 'o', 'h', 'e', 'r', 'o'})
	require.NoError(t, err)
	require.Equal(t, "goprohero", token)

	// header bytes are never part of the token, whatever their value
	token, err = ParseSession(Response{'x', 'y', 'z'})
	require.NoError(t, err)
	require.Equal(t, "z", token)

	// bytes above 0x7F map to the code point of the same value
	token, err = ParseSession(Response{0, 0, 0xE9})
	require.NoError(t, err)
	require.Equal(t, "é", token)

	_, err = ParseSession(Response{0x00, 0x00})
	require.ErrorIs(t, err, ErrNoSession)

	_, err = ParseSession(Response{0x00})
	require.ErrorIs(t, err, ErrShortResponse)

	_, err = ParseSession(nil)
	require.ErrorIs(t, err, ErrShortResponse)
}

func TestParseStatus(t *testing.T) {
	r := statusBytes(map[int]byte{
		1:  byte(ModeBurst),
		19: 87,
		21: 0x00, 22: 0x05,
		23: 0x01, 24: 0x00,
		25: 0x00, 26: 0x78,
		27: 0x12, 28: 0x34,
		29: 1,
	})

	status, err := ParseStatus(r, false)
	require.NoError(t, err)
	require.Equal(t, &Status{
		MenuItem:   ModeBurst,
		Battery:    87,
		PhotosLeft: 5,
		PhotoCount: 256,
		VideosLeft: 120,
		VideoCount: 0x1234,
		Recording:  1,
	}, status)
	require.True(t, status.IsRecording())
	require.Equal(t, 256, status.Fields()["PhotoCount"])
	require.Len(t, status.Fields(), 7)
}

func TestParseStatusCounterEncodings(t *testing.T) {
	tests := []struct {
		high, low byte
		padded    int
		legacy    int
	}{
		{0x00, 0x05, 5, 5},
		{0x01, 0x00, 256, 16},
		{0x0A, 0x00, 2560, 160},
		{0x12, 0x34, 0x1234, 0x1234},
		{0x00, 0x00, 0, 0},
		{0xFF, 0xFF, 65535, 65535},
		{0x10, 0x01, 0x1001, 0x101},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("%02X%02X", test.high, test.low), func(t *testing.T) {
			r := statusBytes(map[int]byte{21: test.high, 22: test.low})

			status, err := ParseStatus(r, false)
			require.NoError(t, err)
			require.Equal(t, test.padded, status.PhotosLeft)

			status, err = ParseStatus(r, true)
			require.NoError(t, err)
			require.Equal(t, test.legacy, status.PhotosLeft)
		})
	}
}

func TestParseStatusShortResponse(t *testing.T) {
	_, err := ParseStatus(make(Response, StatusLength-1), false)
	require.ErrorIs(t, err, ErrShortResponse)
	require.Contains(t, err.Error(), "need 30 bytes, got 29")

	_, err = ParseStatus(nil, true)
	require.ErrorIs(t, err, ErrShortResponse)

	_, err = ParseStatus(make(Response, StatusLength), false)
	require.NoError(t, err)
}

func TestParseDeviceInfo(t *testing.T) {
	info, err := ParseDeviceInfo(Response{0, 0, 0, 3, 65, 66, 67, 2, 88, 89})
	require.NoError(t, err)
	require.Equal(t, "ABC", info.Firmware)
	require.Equal(t, "XY", info.Name)

	// empty strings are valid
	info, err = ParseDeviceInfo(Response{0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, &DeviceInfo{}, info)

	// trailing bytes are ignored
	info, err = ParseDeviceInfo(Response{0, 0, 0, 1, 'a', 1, 'b', 0xFF, 0xFF})
	require.NoError(t, err)
	require.Equal(t, &DeviceInfo{Name: "b", Firmware: "a"}, info)
}

func TestParseDeviceInfoShortResponse(t *testing.T) {
	tests := map[string]Response{
		"no firmware length": {0, 0, 0},
		"firmware truncated": {0, 0, 0, 5, 'a', 'b'},
		"no name length":     {0, 0, 0, 2, 'a', 'b'},
		"name truncated":     {0, 0, 0, 1, 'a', 3, 'x'},
	}
	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDeviceInfo(r)
			require.True(t, errors.Is(err, ErrShortResponse), "got %v", err)
		})
	}
}

func TestDeviceInfoRoundTrip(t *testing.T) {
	for _, info := range []DeviceInfo{
		{Name: "HERO3", Firmware: "HD3.03.03.00"},
		{Name: "Kitchen Cam", Firmware: ""},
		{Name: "", Firmware: "1"},
	} {
		r := CreateDeviceInfoResponse(info)
		require.Equal(t, byte(len(info.Firmware)), r[3])

		decoded, err := ParseDeviceInfo(r)
		require.NoError(t, err)
		require.Equal(t, info, *decoded)
		require.Len(t, decoded.Firmware, len(info.Firmware))
	}
}

func TestStatusRoundTrip(t *testing.T) {
	status := Status{
		MenuItem:   ModeSettings,
		Battery:    42,
		PhotosLeft: 9999,
		PhotoCount: 3,
		VideosLeft: 61,
		VideoCount: 700,
		Recording:  0,
	}
	r := CreateStatusResponse(status)
	require.Len(t, r, StatusLength+1)

	decoded, err := ParseStatus(r, false)
	require.NoError(t, err)
	require.Equal(t, status, *decoded)
}

func TestSessionRoundTrip(t *testing.T) {
	token, err := ParseSession(CreateSessionResponse("secret"))
	require.NoError(t, err)
	require.Equal(t, "secret", token)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("Timelapse")
	require.NoError(t, err)
	require.Equal(t, ModeTimelapse, mode)

	_, err = ParseMode("settings")
	require.Error(t, err)

	_, err = ParseMode("slowmo")
	require.Error(t, err)

	require.Equal(t, []string{"video", "photo", "burst", "timelapse"}, SelectableModes())
	require.Equal(t, "unknown(9)", Mode(9).String())
}

func ExampleParseDeviceInfo() {
	info, err := ParseDeviceInfo(Response{0x00, 0x01, 0x00, 3, 'A', 'B', 'C', 2, 'X', 'Y'})
	if err != nil {
		fmt.Printf("Failed to decode: %s\n", err)
		return
	}

	fmt.Printf("Name: %s, Firmware: %s\n", info.Name, info.Firmware)

	// Output: Name: XY, Firmware: ABC
}

func ExampleCreateSessionResponse() {
	fmt.Printf("Response Data: %X\n", CreateSessionResponse("hero"))

	// Output: Response Data: 00046865726F
}
