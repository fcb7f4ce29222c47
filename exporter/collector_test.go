package exporter

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonas-koeritz/herocam/libgopro"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeCamera struct {
	status     *libgopro.Status
	statusErr  error
	infoErr    error
	infoCalls  int
	statusCall int
}

func (f *fakeCamera) GetStatus() (*libgopro.Status, error) {
	f.statusCall++
	return f.status, f.statusErr
}

func (f *fakeCamera) GetDeviceInfo() (*libgopro.DeviceInfo, error) {
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &libgopro.DeviceInfo{Name: "HERO3", Firmware: "HD3.03.03.00"}, nil
}

func gather(t *testing.T, c *Collector) map[string]*dto.MetricFamily {
	t.Helper()
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)
	families, err := registry.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, family := range families {
		byName[family.GetName()] = family
	}
	return byName
}

func gaugeValue(t *testing.T, families map[string]*dto.MetricFamily, name string) float64 {
	t.Helper()
	family, ok := families[name]
	require.True(t, ok, "metric %s missing", name)
	return family.GetMetric()[0].GetGauge().GetValue()
}

func TestCollect(t *testing.T) {
	camera := &fakeCamera{status: &libgopro.Status{
		MenuItem:   libgopro.ModePhoto,
		Battery:    77,
		PhotosLeft: 1000,
		PhotoCount: 12,
		VideosLeft: 30,
		VideoCount: 4,
		Recording:  1,
	}}
	families := gather(t, NewCollector(camera, zerolog.Nop()))

	require.Equal(t, 1.0, gaugeValue(t, families, "gopro_up"))
	require.Equal(t, 77.0, gaugeValue(t, families, "gopro_battery_percent"))
	require.Equal(t, 1000.0, gaugeValue(t, families, "gopro_photos_left"))
	require.Equal(t, 12.0, gaugeValue(t, families, "gopro_photo_count"))
	require.Equal(t, 30.0, gaugeValue(t, families, "gopro_videos_left_minutes"))
	require.Equal(t, 4.0, gaugeValue(t, families, "gopro_video_count"))
	require.Equal(t, 1.0, gaugeValue(t, families, "gopro_recording"))
	require.Equal(t, 1.0, gaugeValue(t, families, "gopro_menu_item"))

	labels := families["gopro_info"].GetMetric()[0].GetLabel()
	require.Len(t, labels, 2)
	require.Equal(t, "firmware", labels[0].GetName())
	require.Equal(t, "HD3.03.03.00", labels[0].GetValue())
}

func TestCollectFailure(t *testing.T) {
	camera := &fakeCamera{statusErr: libgopro.ErrConnection, infoErr: errors.New("offline")}
	collector := NewCollector(camera, zerolog.Nop())
	families := gather(t, collector)

	require.Equal(t, 0.0, gaugeValue(t, families, "gopro_up"))
	require.NotContains(t, families, "gopro_battery_percent")
	require.NotContains(t, families, "gopro_info")

	// one attempt per scrape
	require.Equal(t, 1, camera.statusCall)
	require.Equal(t, 1, camera.infoCalls)
}

func TestDeviceInfoCached(t *testing.T) {
	camera := &fakeCamera{status: &libgopro.Status{}}
	collector := NewCollector(camera, zerolog.Nop())
	gather(t, collector)
	gather(t, collector)

	require.Equal(t, 1, camera.infoCalls)
	require.Equal(t, 2, camera.statusCall)
}

func TestHandler(t *testing.T) {
	camera := &fakeCamera{status: &libgopro.Status{Battery: 50}}
	ts := httptest.NewServer(Handler(NewCollector(camera, zerolog.Nop())))
	defer ts.Close()

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "gopro_battery_percent 50")
	require.Contains(t, string(body), "gopro_up 1")
}
