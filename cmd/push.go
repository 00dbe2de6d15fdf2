// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package cmd

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

var (
	pushTarget string
	pushRaw    bool
	pushNoMD5  bool
	pushWatch  bool
)

var pushCmd = &cobra.Command{
	Use:   "push <image>",
	Short: "Upload a firmware or filesystem image to the node",
	Long: `Upload an image to a running node.

By default the image goes through the multipart form ingress on /update,
the same path the web UI uses. With --raw the image is streamed to /ota as
a raw octet body with the declared length and digest in headers.

The MD5 digest of the image is computed locally and sent along so the node
can verify the stream before committing it; --no-md5 skips that.

With --watch, a command-channel connection is held open during the upload
and the node's update events (start, progress, end) are printed as they
arrive.

A successful update makes the node restart shortly after the end event.`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().StringVarP(&pushTarget, "target", "t", roboproto.TargetApp, "Update target (app or fs)")
	pushCmd.Flags().BoolVar(&pushRaw, "raw", false, "Stream to /ota instead of multipart /update")
	pushCmd.Flags().BoolVar(&pushNoMD5, "no-md5", false, "Skip the integrity digest")
	pushCmd.Flags().BoolVarP(&pushWatch, "watch", "w", false, "Print update events during the upload")
	pushCmd.Flags().SortFlags = false
}

func runPush(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %v", err)
	}

	base, err := httpBase()
	if err != nil {
		return err
	}

	md5hex := ""
	if !pushNoMD5 {
		sum := md5.Sum(image)
		md5hex = hex.EncodeToString(sum[:])
	}

	fmt.Printf("RoBoRa - Image Push\n")
	fmt.Printf("Image:  %s (%d bytes)\n", imagePath, len(image))
	fmt.Printf("Target: %s\n", pushTarget)
	if md5hex != "" {
		fmt.Printf("MD5:    %s\n", md5hex)
	}
	fmt.Println()

	var watcher *NodeConn
	watchDone := make(chan struct{})
	if pushWatch {
		conn, _, err := OpenConnection()
		if err != nil {
			return fmt.Errorf("watch connection: %v", err)
		}
		defer conn.Close()
		watcher = conn
		go watchEvents(watcher, watchDone)
	}

	var resp *http.Response
	if pushRaw {
		resp, err = pushStream(base, image, md5hex)
	} else {
		resp, err = pushForm(base, imagePath, image, md5hex)
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload refused (HTTP %d): %s", resp.StatusCode, string(body))
	}
	fmt.Printf("Upload accepted: %s\n", string(body))

	if pushWatch {
		// Give the end event a moment to arrive before closing the watch.
		select {
		case <-watchDone:
		case <-time.After(3 * time.Second):
		}
	}
	return nil
}

func pushStream(base string, image []byte, md5hex string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, base+"/ota", bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Update-Target", pushTarget)
	if md5hex != "" {
		req.Header.Set("X-Content-MD5", md5hex)
	}
	req.ContentLength = int64(len(image))
	return http.DefaultClient.Do(req)
}

func pushForm(base, imagePath string, image []byte, md5hex string) (*http.Response, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeForm(mw, imagePath, image, md5hex)
		mw.Close()
		pw.CloseWithError(err)
	}()
	return http.Post(base+"/update", mw.FormDataContentType(), pr)
}

func writeForm(mw *multipart.Writer, imagePath string, image []byte, md5hex string) error {
	if err := mw.WriteField("target", pushTarget); err != nil {
		return err
	}
	if md5hex != "" {
		if err := mw.WriteField("md5", md5hex); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("update", filepath.Base(imagePath))
	if err != nil {
		return err
	}
	_, err = fw.Write(image)
	return err
}

// watchEvents prints update events until the end event or a read error.
func watchEvents(conn *NodeConn, done chan struct{}) {
	defer close(done)
	for {
		e, err := conn.Read()
		if err != nil {
			return
		}
		if e.Command() != roboproto.CmdOTA {
			continue
		}
		switch e.String("event", "") {
		case roboproto.EventStart:
			fmt.Printf("[start] target=%s total=%d max=%d\n",
				e.String("target", "?"), e.Int("total", 0), e.Int("max", 0))
		case roboproto.EventProgress:
			fmt.Printf("[progress] %d/%d\n", e.Int("done", 0), e.Int("total", 0))
		case roboproto.EventReject:
			fmt.Printf("[reject] %s\n", e.String("reason", "?"))
			return
		case roboproto.EventEnd:
			fmt.Printf("[end] ok=%v %s\n", e.Bool("ok", false), e.String("message", ""))
			return
		}
	}
}
