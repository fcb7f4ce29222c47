package emulator

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	json "github.com/bytedance/sonic"
	"github.com/jonas-koeritz/herocam/libgopro"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Directory is the single DCIM directory the emulated camera writes to
const Directory = "100GOPRO"

// State is everything the emulated camera reports
type State struct {
	Password   string
	Name       string
	Firmware   string
	Mode       libgopro.Mode
	Battery    int
	PhotosLeft int
	PhotoCount int
	VideosLeft int
	VideoCount int
	Recording  bool
	Files      []libgopro.MediaFile
}

// DefaultState is a freshly formatted camera with a full battery
func DefaultState() State {
	return State{
		Password:   "goprohero",
		Name:       "HERO3",
		Firmware:   "HD3.03.03.00",
		Mode:       libgopro.ModeVideo,
		Battery:    100,
		PhotosLeft: 2400,
		VideosLeft: 120,
	}
}

// Server implements the cameras WiFi HTTP interface
type Server struct {
	localIP   string
	localPort int
	server    *http.Server
	log       zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	state    State
}

// CreateServer creates a new Server instance
func CreateServer(localIP string, port int, state State) *Server {
	s := &Server{
		localIP:   localIP,
		localPort: port,
		state:     state,
		log:       zerolog.Nop(),
	}
	s.server = &http.Server{Handler: s.Handler()}
	return s
}

// SetLogger replaces the request logger
func (s *Server) SetLogger(log zerolog.Logger) {
	s.log = log.With().Str("module", "emulator").Logger()
}

// State returns a copy of the current emulated state
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	state.Files = append([]libgopro.MediaFile(nil), s.state.Files...)
	return state
}

// Handler returns the HTTP handler serving all camera endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+libgopro.PathSession, s.handleSession)
	mux.HandleFunc("GET "+libgopro.PathStatus, s.authenticated(s.handleStatus))
	mux.HandleFunc("GET "+libgopro.PathDeviceInfo, s.handleDeviceInfo)
	mux.HandleFunc("GET "+libgopro.PathMode, s.authenticated(s.handleMode))
	mux.HandleFunc("GET "+libgopro.PathShutter, s.authenticated(s.handleShutter))
	mux.HandleFunc("GET "+libgopro.PathMediaList, s.handleMediaList)
	mux.HandleFunc("GET "+libgopro.MediaRoot+Directory+"/{name}", s.handleFile)
	return s.logRequests(mux)
}

// ListenAndServe starts listening for connections and handles them
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp4", fmt.Sprintf("%s:%d", s.localIP, s.localPort))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info().Str("addr", listener.Addr().String()).Msg("Emulated camera waiting for connections")

	err = s.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the address the server listens on, nil before ListenAndServe
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops listening for connections. A server stopped before
// ListenAndServe returns from it right away.
func (s *Server) Stop() error {
	return s.server.Close()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("path", r.URL.Path).Str("query", r.URL.RawQuery).Msg("C->S")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		password := s.state.Password
		s.mu.Unlock()

		if r.URL.Query().Get("t") != string(libgopro.Session{Token: password}.Bytes()) {
			http.Error(w, "wrong password", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// parameter returns the single byte passed as p
func parameter(r *http.Request) (byte, bool) {
	p := r.URL.Query().Get("p")
	if len(p) != 1 {
		return 0, false
	}
	return p[0], true
}

func writeRaw(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write(payload)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeRaw(w, libgopro.CreateSessionResponse(s.state.Password))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeRaw(w, libgopro.CreateStatusResponse(s.status()))
}

func (s *Server) status() libgopro.Status {
	return libgopro.Status{
		MenuItem:   s.state.Mode,
		Battery:    s.state.Battery,
		PhotosLeft: s.state.PhotosLeft,
		PhotoCount: s.state.PhotoCount,
		VideosLeft: s.state.VideosLeft,
		VideoCount: s.state.VideoCount,
		Recording:  lo.Ternary(s.state.Recording, 1, 0),
	}
}

func (s *Server) handleDeviceInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeRaw(w, libgopro.CreateDeviceInfoResponse(libgopro.DeviceInfo{
		Name:     s.state.Name,
		Firmware: s.state.Firmware,
	}))
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	p, ok := parameter(r)
	if !ok || libgopro.Mode(p) > libgopro.ModeTimelapse {
		http.Error(w, "invalid mode", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Recording {
		http.Error(w, "busy", http.StatusGone)
		return
	}
	s.state.Mode = libgopro.Mode(p)
	s.log.Debug().Stringer("mode", s.state.Mode).Msg("Mode changed")
	writeRaw(w, []byte{0x00})
}

func (s *Server) handleShutter(w http.ResponseWriter, r *http.Request) {
	p, ok := parameter(r)
	if !ok || p > 1 {
		http.Error(w, "invalid shutter value", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p == 1 {
		s.trigger()
	} else {
		s.stop()
	}
	writeRaw(w, []byte{0x00})
}

func (s *Server) trigger() {
	switch s.state.Mode {
	case libgopro.ModeVideo, libgopro.ModeTimelapse:
		s.state.Recording = true
	case libgopro.ModePhoto:
		s.takePhotos(1)
	case libgopro.ModeBurst:
		s.takePhotos(3)
	}
}

func (s *Server) stop() {
	if !s.state.Recording {
		return
	}
	s.state.Recording = false
	if s.state.Mode == libgopro.ModeTimelapse {
		s.takePhotos(1)
		return
	}
	s.state.VideoCount++
	s.addFile("MP4")
}

func (s *Server) takePhotos(n int) {
	for i := 0; i < n && s.state.PhotosLeft > 0; i++ {
		s.state.PhotoCount++
		s.state.PhotosLeft--
		s.addFile("JPG")
	}
}

func (s *Server) addFile(extension string) {
	name := fmt.Sprintf("GOPR%04d.%s", len(s.state.Files)+1, extension)
	s.state.Files = append(s.state.Files, libgopro.MediaFile{
		Name: name,
		Size: strconv.Itoa(len(fileContent(name))),
	})
}

func fileContent(name string) []byte {
	return []byte("emulated " + name + "\n")
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := libgopro.MediaList{
		Media: []libgopro.MediaDirectory{{
			Directory: Directory,
			Files:     append([]libgopro.MediaFile{}, s.state.Files...),
		}},
	}
	s.mu.Unlock()

	body, err := json.Marshal(list)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.Lock()
	_, found := lo.Find(s.state.Files, func(f libgopro.MediaFile) bool {
		return strings.EqualFold(f.Name, name)
	})
	s.mu.Unlock()

	if !found {
		http.NotFound(w, r)
		return
	}
	writeRaw(w, fileContent(name))
}
