package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/internal/http"
	"github.com/fivetwenty-io/snow/pkg/snow"
)

// AttachmentsClient implements snow.AttachmentsClient.
type AttachmentsClient struct {
	httpClient *http.Client
}

// NewAttachmentsClient creates a new attachments client.
func NewAttachmentsClient(httpClient *http.Client) *AttachmentsClient {
	return &AttachmentsClient{
		httpClient: httpClient,
	}
}

// List implements snow.AttachmentsClient.List.
func (c *AttachmentsClient) List(ctx context.Context, tableName, tableSysID string) ([]snow.Attachment, error) {
	if tableName == "" {
		return nil, snow.ErrTableNameRequired
	}

	if tableSysID == "" {
		return nil, snow.ErrSysIDRequired
	}

	filter := "table_name=" + tableName + snow.ClauseSeparator + "table_sys_id=" + tableSysID

	resp, err := c.httpClient.GetRaw(ctx, constants.AttachmentPath, snow.ParamQuery+"="+url.QueryEscape(filter))
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}

	envelope, err := snow.NormalizeList[snow.Attachment](resp.Body, resp.Headers)
	if err != nil {
		return nil, fmt.Errorf("parsing attachments: %w", err)
	}

	return envelope.Page().Items, nil
}

// Get implements snow.AttachmentsClient.Get.
func (c *AttachmentsClient) Get(ctx context.Context, sysID string) (*snow.Attachment, error) {
	if sysID == "" {
		return nil, snow.ErrSysIDRequired
	}

	resp, err := c.httpClient.Get(ctx, constants.AttachmentPath+"/"+sysID, nil)
	if err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}

	return decodeSingle[snow.Attachment](resp.Body, "attachment")
}

// Download implements snow.AttachmentsClient.Download. A partially written
// file is removed when the transfer fails.
func (c *AttachmentsClient) Download(ctx context.Context, attachment *snow.Attachment, outputDir, filename string) (string, error) {
	if attachment == nil {
		return "", constants.ErrAttachmentNotFound
	}

	if filename == "" {
		filename = attachment.FileName
	}

	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		return "", fmt.Errorf("%w: %q", constants.ErrInvalidFileName, attachment.FileName)
	}

	path, rawQuery, err := splitAPILink(attachment.DownloadLink)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(outputDir, constants.DownloadDirPerm)
	if err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	body, _, err := c.httpClient.Stream(ctx, path, rawQuery)
	if err != nil {
		return "", fmt.Errorf("downloading attachment: %w", err)
	}

	defer func() { _ = body.Close() }()

	target := filepath.Join(outputDir, filename)

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.DownloadFilePerm)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", target, err)
	}

	_, copyErr := io.Copy(file, body)
	closeErr := file.Close()

	writeErr := errors.Join(copyErr, closeErr)
	if writeErr != nil {
		_ = os.Remove(target)

		if ctx.Err() != nil {
			return "", snow.Canceled(ctx.Err())
		}

		return "", fmt.Errorf("%w: %w", constants.ErrDownloadFailed, writeErr)
	}

	return target, nil
}

// splitAPILink turns an absolute or relative service link into an API path
// and query string, keeping everything from "/api/" on.
func splitAPILink(link string) (string, string, error) {
	relative := link

	if !strings.HasPrefix(link, "api/") {
		index := strings.Index(link, "/api/")
		if index < 0 {
			return "", "", fmt.Errorf("%w: %q", snow.ErrInvalidLink, link)
		}

		relative = link[index+1:]
	}

	path, rawQuery, _ := strings.Cut(relative, "?")

	return path, rawQuery, nil
}
