package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBlobSink uploads result files into one blob container
type AzureBlobSink struct {
	client    *azblob.Client
	container string
}

// NewAzureBlobSink authenticates with a shared key. An empty serviceURL uses
// the public endpoint of the account.
func NewAzureBlobSink(accountName, accountKey, container, serviceURL string) (*AzureBlobSink, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	}
	if !strings.HasSuffix(serviceURL, "/") {
		serviceURL += "/"
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}
	return &AzureBlobSink{client: client, container: container}, nil
}

func (s *AzureBlobSink) Name() string { return "azure" }

// Container returns the target container name
func (s *AzureBlobSink) Container() string { return s.container }

func (s *AzureBlobSink) Put(ctx context.Context, name string, data []byte) error {
	if _, err := s.client.UploadBuffer(ctx, s.container, name, data, nil); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

// Get downloads a previously stored result file
func (s *AzureBlobSink) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()
	return io.ReadAll(body)
}
