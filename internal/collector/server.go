package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abhisek/revlearn/internal/export"
)

// Options configures a Server.
type Options struct {
	// Root is the directory data_dir values resolve under.
	Root string

	// Uploader receives files named by /upload; nil disables the endpoint.
	Uploader export.Persister

	// Mailer is notified by /mail; nil only logs and queues the name.
	Mailer export.Notifier

	MaxBodyBytes int64
	Logger       *zap.Logger
}

// Server receives exports posted by running sessions.
type Server struct {
	opts Options
	log  *zap.Logger

	mu     sync.Mutex
	outbox []string
}

// New creates a Server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{opts: opts, log: log.Named("collector")}
}

// Router builds the gin engine with the save_data, upload and mail routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.log))
	if s.opts.MaxBodyBytes > 0 {
		router.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxBodyBytes)
			c.Next()
		})
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/save_data", s.SaveData)
	router.POST("/upload", s.Upload)
	router.POST("/mail", s.Mail)
	return router
}

// Outbox returns the file names announced via /mail without a mailer.
func (s *Server) Outbox() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.outbox...)
}

// resolve validates data_dir and file_name and returns the directory.
func (s *Server) resolve(dataDir, fileName string) (string, error) {
	if _, err := export.SafeName(fileName); err != nil {
		return "", err
	}
	if dataDir == "" {
		return s.opts.Root, nil
	}
	clean := filepath.Clean(dataDir)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid data dir %q", dataDir)
	}
	return filepath.Join(s.opts.Root, clean), nil
}

// SaveData writes exp_data to data_dir/file_name.
func (s *Server) SaveData(c *gin.Context) {
	dataDir, fileName := c.PostForm("data_dir"), c.PostForm("file_name")
	data, ok := c.GetPostForm("exp_data")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exp_data is required"})
		return
	}

	dir, err := s.resolve(dataDir, fileName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sink := &export.DirSink{Dir: dir}
	if err := sink.Save(c.Request.Context(), export.Blob{Name: fileName, Data: []byte(data)}); err != nil {
		s.log.Error("Failed to save data", zap.String("file", fileName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	s.log.Info("Data saved", zap.String("dir", dir), zap.String("file", fileName), zap.Int("bytes", len(data)))
	c.JSON(http.StatusOK, gin.H{"saved": fileName})
}

// Upload forwards a previously saved file to the uploader.
func (s *Server) Upload(c *gin.Context) {
	if s.opts.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no upload target configured"})
		return
	}
	fileName := c.PostForm("file_name")
	dir, err := s.resolve(c.PostForm("data_dir"), fileName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err != nil {
		s.log.Error("Failed to read file for upload", zap.String("file", fileName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()
	blob := export.Blob{Name: fileName, ContentType: contentType(fileName), Data: data}
	if err := s.opts.Uploader.Save(ctx, blob); err != nil {
		s.log.Error("Failed to upload file", zap.String("file", fileName), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	s.log.Info("File uploaded", zap.String("file", fileName))
	c.JSON(http.StatusOK, gin.H{"uploaded": fileName})
}

// Mail announces that file_name is ready.
func (s *Server) Mail(c *gin.Context) {
	fileName := c.PostForm("file_name")
	if _, err := export.SafeName(fileName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.opts.Mailer != nil {
		if err := s.opts.Mailer.Mail(c.Request.Context(), fileName); err != nil {
			s.log.Error("Failed to send notification", zap.String("file", fileName), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "notification failed"})
			return
		}
	}

	s.mu.Lock()
	s.outbox = append(s.outbox, fileName)
	s.mu.Unlock()
	s.log.Info("Export ready", zap.String("file", fileName))
	c.JSON(http.StatusOK, gin.H{"queued": fileName})
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return export.FormatJSON.ContentType()
	case ".csv":
		return export.FormatCSV.ContentType()
	}
	return "application/octet-stream"
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Collector listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown collector: %w", err)
		}
		return nil
	}
}
