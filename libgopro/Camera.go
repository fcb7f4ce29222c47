package libgopro

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultConnectTimeout bounds the connect phase of every request
const DefaultConnectTimeout = 1000 * time.Millisecond

// Session holds the token handed out by the camera
type Session struct {
	Token string
}

// IsLoaded returns true if the session carries a token
func (s Session) IsLoaded() bool {
	return s.Token != ""
}

// Bytes returns the token as the raw bytes the camera handed out
func (s Session) Bytes() []byte {
	return latin1Bytes(s.Token)
}

// Camera controls a single camera over its WiFi HTTP interface
type Camera struct {
	host           string
	mediaBaseURL   string
	connectTimeout time.Duration
	verbose        bool
	legacyCounters bool
	session        Session
	http           *resty.Client
	logger         zerolog.Logger
	log            zerolog.Logger
}

// CreateCamera creates a new Camera instance talking to host (host or host:port)
func CreateCamera(host string) (*Camera, error) {
	if host == "" {
		return nil, errors.New("cannot create camera without a host")
	}
	u, err := url.Parse("http://" + host)
	if err != nil || u.Host != host {
		return nil, fmt.Errorf("%w: host %q", ErrMalformedTarget, host)
	}

	camera := &Camera{
		host:           host,
		mediaBaseURL:   fmt.Sprintf("http://%s:%d", u.Hostname(), MediaPort),
		connectTimeout: DefaultConnectTimeout,
		logger:         zerolog.Nop(),
		log:            zerolog.Nop(),
	}
	camera.http = camera.newClient()
	return camera, nil
}

// newClient opens one connection per request and bounds only the connect phase
func (c *Camera) newClient() *resty.Client {
	transport := &http.Transport{
		DialContext:       (&net.Dialer{Timeout: c.connectTimeout}).DialContext,
		DisableKeepAlives: true,
	}
	return resty.New().
		SetTransport(transport).
		SetBaseURL("http://"+c.host).
		SetLogger(restyLogger{log: &c.log})
}

// SetConnectTimeout changes the connect timeout used for all following requests
func (c *Camera) SetConnectTimeout(timeout time.Duration) {
	c.connectTimeout = timeout
	c.http = c.newClient()
}

// SetVerbose changes the verbosity setting of this camera object
func (c *Camera) SetVerbose(verbose bool) {
	c.verbose = verbose
	c.updateLogger()
}

// SetLogger replaces the logger, the default discards everything
func (c *Camera) SetLogger(log zerolog.Logger) {
	c.logger = log.With().Str("camera", c.host).Logger()
	c.updateLogger()
}

func (c *Camera) updateLogger() {
	if c.verbose {
		c.log = c.logger.Level(zerolog.DebugLevel)
	} else {
		c.log = c.logger
	}
}

// SetLegacyCounters selects the unpadded hex combination for status counters
func (c *Camera) SetLegacyCounters(legacy bool) {
	c.legacyCounters = legacy
}

// SetMediaBaseURL overrides the media server location (default http://<host>:8080)
func (c *Camera) SetMediaBaseURL(baseURL string) {
	c.mediaBaseURL = baseURL
}

// Host returns the address the camera was created with
func (c *Camera) Host() string {
	return c.host
}

// Log writes a debug message if this camera has been set to be verbose
func (c *Camera) Log(format string, data ...interface{}) {
	if c.verbose {
		c.log.Debug().Msgf(format, data...)
	}
}

// Login requests a session token from the camera. It only talks to the
// camera once, later calls keep the first session.
func (c *Camera) Login() error {
	if c.session.IsLoaded() {
		return nil
	}

	response, err := c.ExecuteCommand(PathSession, nil)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not get password from camera")
		return err
	}

	token, err := ParseSession(response)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not get password from camera")
		return err
	}

	c.session = Session{Token: token}
	c.Log("Session loaded")
	return nil
}

// IsLoaded returns true once Login obtained a session token
func (c *Camera) IsLoaded() bool {
	return c.session.IsLoaded()
}

// Session returns the current session
func (c *Camera) Session() Session {
	return c.session
}

// ExecuteCommand performs a single GET against path and returns the raw body.
// Failures are logged and returned, nothing is retried.
func (c *Camera) ExecuteCommand(path string, params map[string]string) (Response, error) {
	request := c.http.R()
	if params != nil {
		request.SetQueryParams(params)
	}

	response, err := request.Get(path)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Op == "parse" {
			err = fmt.Errorf("%w: %s", ErrMalformedTarget, err)
		} else {
			err = fmt.Errorf("%w: %s", ErrConnection, err)
		}
		c.log.Error().Err(err).Str("path", path).Msg("Command failed")
		return nil, err
	}

	if response.IsError() {
		err = fmt.Errorf("%w: %s returned %s", ErrConnection, path, response.Status())
		c.log.Error().Err(err).Str("path", path).Msg("Command failed")
		return nil, err
	}

	body := response.Body()
	c.Log("%s returned %d bytes", path, len(body))
	return Response(body), nil
}

func (c *Camera) authenticated(path string, param *byte) (Response, error) {
	if !c.session.IsLoaded() {
		return nil, ErrNotLoaded
	}
	params := map[string]string{"t": string(c.session.Bytes())}
	if param != nil {
		params["p"] = string([]byte{*param})
	}
	return c.ExecuteCommand(path, params)
}

// GetStatus retrieves a status snapshot from the camera
func (c *Camera) GetStatus() (*Status, error) {
	response, err := c.authenticated(PathStatus, nil)
	if err != nil {
		return nil, err
	}

	status, err := ParseStatus(response, c.legacyCounters)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not decode status")
		return nil, err
	}
	return status, nil
}

// GetDeviceInfo retrieves camera name and firmware version
func (c *Camera) GetDeviceInfo() (*DeviceInfo, error) {
	response, err := c.ExecuteCommand(PathDeviceInfo, nil)
	if err != nil {
		return nil, err
	}

	info, err := ParseDeviceInfo(response)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not decode device info")
		return nil, err
	}
	return info, nil
}

// GetCameraName returns the camera name, which is not the WiFi name
func (c *Camera) GetCameraName() (string, error) {
	info, err := c.GetDeviceInfo()
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

// GetFirmware returns the firmware version
func (c *Camera) GetFirmware() (string, error) {
	info, err := c.GetDeviceInfo()
	if err != nil {
		return "", err
	}
	return info.Firmware, nil
}

// SetMode switches the capture mode. The response content is ignored.
func (c *Camera) SetMode(mode Mode) error {
	if mode > ModeTimelapse {
		return fmt.Errorf("mode %s cannot be selected", mode)
	}
	p := byte(mode)
	c.Log("Switching to %s mode", mode)
	_, err := c.authenticated(PathMode, &p)
	return err
}

// SetVideoMode sets capture mode to video
func (c *Camera) SetVideoMode() error {
	return c.SetMode(ModeVideo)
}

// SetPhotoMode sets capture mode to photo
func (c *Camera) SetPhotoMode() error {
	return c.SetMode(ModePhoto)
}

// SetBurstMode sets capture mode to burst
func (c *Camera) SetBurstMode() error {
	return c.SetMode(ModeBurst)
}

// SetTimelapse sets capture mode to timelapse
func (c *Camera) SetTimelapse() error {
	return c.SetMode(ModeTimelapse)
}

// Shutter fires the shutter, same as pressing the top button
func (c *Camera) Shutter() error {
	p := byte(shutterTrigger)
	c.Log("Firing shutter")
	_, err := c.authenticated(PathShutter, &p)
	return err
}

// Stop stops the current capture
func (c *Camera) Stop() error {
	p := byte(shutterStop)
	c.Log("Stopping capture")
	_, err := c.authenticated(PathShutter, &p)
	return err
}

// restyLogger forwards resty's own messages to the camera logger
type restyLogger struct {
	log *zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}
