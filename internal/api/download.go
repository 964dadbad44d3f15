package api

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrijs2005/credbroker/internal/common"
)

const downloadChunkSize = 32 * 1024

// Download streams url into dest, reporting cumulative progress after each
// chunk. It uses a dedicated client with a connect timeout only: a large
// update must not be killed by the request deadline of the regular client.
func (c *HTTPClient) Download(ctx context.Context, url, dest string, progress ProgressFunc) error {
	dl := resty.New().
		SetTransport(newTransport(c.connectTimeout)).
		SetDoNotParseResponse(true)

	resp, err := dl.R().SetContext(ctx).Get(url)
	if err != nil {
		return transportErr(err)
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return statusErr(resp.StatusCode())
	}

	total := resp.RawResponse.ContentLength
	if total < 0 {
		total = 0
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	var downloaded int64
	buf := make([]byte, downloadChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write %s: %w", dest, werr)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrNetworkUnavailable, err)
		}
	}

	return out.Sync()
}
