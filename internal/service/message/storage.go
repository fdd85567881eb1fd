package message

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tutor_chat_server/pkg/util/random"
)

// StoredFile 存储后的文件信息
type StoredFile struct {
	Url         string
	ContentType string
	Size        int64
}

// FileStorage 文件存储协作方，只负责把字节变成可访问的 URL
type FileStorage interface {
	Save(ctx context.Context, fileHeader *multipart.FileHeader) (*StoredFile, error)
}

// LocalFileStorage 写本地目录，由 gin 静态路由对外提供
type LocalFileStorage struct {
	dir       string
	publicURL string
}

// NewLocalFileStorage dir 不存在时自动创建
func NewLocalFileStorage(dir, publicURL string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalFileStorage{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Save 用 Magic Bytes 识别类型，随机文件名保留原扩展名
func (s *LocalFileStorage) Save(_ context.Context, fileHeader *multipart.FileHeader) (*StoredFile, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		return nil, err
	}
	contentType := http.DetectContentType(buffer[:n])
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	newFileName := random.GetNowAndLenRandomString(10) + ext
	dst := filepath.Join(s.dir, newFileName)

	out, err := os.Create(dst)
	if err != nil {
		return nil, err
	}
	written, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return nil, err
	}

	return &StoredFile{
		Url:         path.Join(s.publicURL, newFileName),
		ContentType: contentType,
		Size:        written,
	}, nil
}
