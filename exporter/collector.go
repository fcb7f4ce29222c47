package exporter

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonas-koeritz/herocam/libgopro"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Camera is the part of libgopro.Camera the collector scrapes
type Camera interface {
	GetStatus() (*libgopro.Status, error)
	GetDeviceInfo() (*libgopro.DeviceInfo, error)
}

var (
	upDesc = prometheus.NewDesc(
		"gopro_up", "Was the last status request successful.", nil, nil,
	)
	scrapeDurationDesc = prometheus.NewDesc(
		"gopro_scrape_duration_seconds", "Time taken to query the camera.", nil, nil,
	)
	infoDesc = prometheus.NewDesc(
		"gopro_info", "Camera name and firmware version.", []string{"name", "firmware"}, nil,
	)
	menuItemDesc = prometheus.NewDesc(
		"gopro_menu_item", "Selected menu (0=video, 1=photo, 2=burst, 3=timelapse, 7=settings).", nil, nil,
	)
	batteryDesc = prometheus.NewDesc(
		"gopro_battery_percent", "Remaining battery.", nil, nil,
	)
	photosLeftDesc = prometheus.NewDesc(
		"gopro_photos_left", "Photos that still fit on the SD-Card.", nil, nil,
	)
	photoCountDesc = prometheus.NewDesc(
		"gopro_photo_count", "Photos stored on the SD-Card.", nil, nil,
	)
	videosLeftDesc = prometheus.NewDesc(
		"gopro_videos_left_minutes", "Video minutes that still fit on the SD-Card.", nil, nil,
	)
	videoCountDesc = prometheus.NewDesc(
		"gopro_video_count", "Videos stored on the SD-Card.", nil, nil,
	)
	recordingDesc = prometheus.NewDesc(
		"gopro_recording", "1 while the camera is recording.", nil, nil,
	)
)

// Collector exports the status of one camera
type Collector struct {
	Camera Camera
	Log    zerolog.Logger

	mu   sync.Mutex
	info *libgopro.DeviceInfo
}

// NewCollector creates a collector scraping camera
func NewCollector(camera Camera, log zerolog.Logger) *Collector {
	return &Collector{Camera: camera, Log: log}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- upDesc
	ch <- scrapeDurationDesc
	ch <- infoDesc
	ch <- menuItemDesc
	ch <- batteryDesc
	ch <- photosLeftDesc
	ch <- photoCountDesc
	ch <- videosLeftDesc
	ch <- videoCountDesc
	ch <- recordingDesc
}

// Collect queries the camera once per scrape, failures are not retried
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	if c.info == nil {
		info, err := c.Camera.GetDeviceInfo()
		if err != nil {
			c.Log.Warn().Err(err).Msg("Error reading device info")
		} else {
			c.info = info
		}
	}
	if c.info != nil {
		ch <- prometheus.MustNewConstMetric(infoDesc, prometheus.GaugeValue, 1, c.info.Name, c.info.Firmware)
	}

	up := 0.0
	status, err := c.Camera.GetStatus()
	if err != nil {
		c.Log.Error().Err(err).Msg("Error scraping status")
	} else {
		up = 1.0
		gauge := func(desc *prometheus.Desc, v int) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v))
		}
		gauge(menuItemDesc, int(status.MenuItem))
		gauge(batteryDesc, status.Battery)
		gauge(photosLeftDesc, status.PhotosLeft)
		gauge(photoCountDesc, status.PhotoCount)
		gauge(videosLeftDesc, status.VideosLeft)
		gauge(videoCountDesc, status.VideoCount)
		gauge(recordingDesc, status.Recording)
	}

	ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, up)
	ch <- prometheus.MustNewConstMetric(scrapeDurationDesc, prometheus.GaugeValue, time.Since(start).Seconds())
}

// Handler serves the collector on /metrics
func Handler(c *Collector) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: promLogger{log: c.Log},
	}))
	return mux
}

type promLogger struct {
	log zerolog.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(v...))
}
