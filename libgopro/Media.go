package libgopro

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	json "github.com/bytedance/sonic"
	"github.com/samber/lo"
)

// MediaRoot is the path prefix of all files served by the media web server
const MediaRoot = "/videos/DCIM/"

// StoredFile is a file stored on the cameras sd-card
type StoredFile struct {
	Path string `json:"path"`
	Size uint64 `json:"size"`
}

// MediaList is the document served at PathMediaList
type MediaList struct {
	Media []MediaDirectory `json:"media"`
}

// MediaDirectory is one DCIM directory of the media list
type MediaDirectory struct {
	Directory string      `json:"d"`
	Files     []MediaFile `json:"fs"`
}

// MediaFile is one entry of a media directory, Size is a decimal string
type MediaFile struct {
	Name string `json:"n"`
	Size string `json:"s"`
}

// GetMediaList retrieves a list of files stored on the cameras SD-Card
func (c *Camera) GetMediaList() ([]StoredFile, error) {
	response, err := c.http.R().Get(c.mediaBaseURL + PathMediaList)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrConnection, err)
		c.log.Error().Err(err).Msg("Could not load media list")
		return nil, err
	}
	if response.IsError() {
		err = fmt.Errorf("%w: media list returned %s", ErrConnection, response.Status())
		c.log.Error().Err(err).Msg("Could not load media list")
		return nil, err
	}

	var list MediaList
	if err = json.Unmarshal(response.Body(), &list); err != nil {
		return nil, fmt.Errorf("parse media list: %w", err)
	}
	return parseMediaList(list), nil
}

func parseMediaList(list MediaList) []StoredFile {
	return lo.FlatMap(list.Media, func(dir MediaDirectory, _ int) []StoredFile {
		return lo.FilterMap(dir.Files, func(file MediaFile, _ int) (StoredFile, bool) {
			size, err := strconv.ParseUint(file.Size, 10, 64)
			if err != nil || file.Name == "" {
				return StoredFile{}, false
			}
			return StoredFile{
				Path: MediaRoot + dir.Directory + "/" + file.Name,
				Size: size,
			}, true
		})
	})
}

// DownloadFile stores file from the cameras media server at destination.
// The body is written to a temporary file next to destination and only
// renamed onto it after a complete, successful transfer.
func (c *Camera) DownloadFile(file StoredFile, destination string) error {
	c.Log("Downloading %s to %s", file.Path, destination)
	response, err := c.http.R().
		SetDoNotParseResponse(true).
		Get(c.mediaBaseURL + file.Path)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrConnection, err)
		c.log.Error().Err(err).Str("file", file.Path).Msg("Download failed")
		return err
	}
	body := response.RawBody()
	defer body.Close()

	if response.IsError() {
		err = fmt.Errorf("%w: download of %s returned %s", ErrConnection, file.Path, response.Status())
		c.log.Error().Err(err).Str("file", file.Path).Msg("Download failed")
		return err
	}

	dir := filepath.Dir(destination)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destination)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err = io.Copy(tmp, body); err != nil {
		tmp.Close()
		err = fmt.Errorf("%w: %s", ErrConnection, err)
		c.log.Error().Err(err).Str("file", file.Path).Msg("Download failed")
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destination)
}
