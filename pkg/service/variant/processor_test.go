package variant

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/qinglan-dev/qinglan-app/pkg/constant"

	"github.com/disintegration/imaging"
)

// makeTestPNG 生成指定尺寸的纯色PNG字节。
func makeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 144, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("生成测试图片失败: %v", err)
	}
	return buf.Bytes()
}

func newTestProcessor(webpVariants bool) VariantProcessorService {
	return &variantProcessorServiceImpl{webpVariants: webpVariants}
}

func TestProcess_阶梯按尺寸跳过放大(t *testing.T) {
	svc := newTestProcessor(false)
	data := makeTestPNG(t, 800, 600)

	result, err := svc.Process(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	if result.SourceWidth != 800 || result.SourceHeight != 600 {
		t.Fatalf("原图尺寸不符: %dx%d", result.SourceWidth, result.SourceHeight)
	}

	// 800x600 只应生成 thumbnail 与 small；medium/large 会放大，必须跳过
	wantLabels := map[string]bool{"thumbnail": true, "small": true}
	if len(result.Variants) != len(wantLabels) {
		t.Fatalf("变体数量不符: got %d, want %d", len(result.Variants), len(wantLabels))
	}
	for _, v := range result.Variants {
		if !wantLabels[v.Label] {
			t.Errorf("不应生成变体: %s", v.Label)
		}
		if v.Width > 800 || v.Height > 600 {
			t.Errorf("变体 %s 被放大: %dx%d", v.Label, v.Width, v.Height)
		}
		if v.Format != "png" {
			t.Errorf("变体 %s 格式应为 png, got %s", v.Label, v.Format)
		}
		if len(v.Data) == 0 {
			t.Errorf("变体 %s 无数据", v.Label)
		}
	}
}

func TestProcess_恰好等于阶梯尺寸仍生成该级(t *testing.T) {
	svc := newTestProcessor(false)
	data := makeTestPNG(t, 320, 320)

	result, err := svc.Process(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("处理失败: %v", err)
	}

	// 320x320 与 thumbnail 级边界框正好重合：该级照常生成，其余级全部跳过
	if len(result.Variants) != 1 {
		t.Fatalf("变体数量不符: got %d, want 1", len(result.Variants))
	}
	v := result.Variants[0]
	if v.Label != "thumbnail" {
		t.Errorf("应生成 thumbnail 级, got %s", v.Label)
	}
	if v.Width != 320 || v.Height != 320 {
		t.Errorf("变体尺寸不符: %dx%d", v.Width, v.Height)
	}
}

func TestProcess_变体尺寸不超过边界框(t *testing.T) {
	svc := newTestProcessor(false)
	data := makeTestPNG(t, 3000, 1500)

	result, err := svc.Process(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	if len(result.Variants) != len(defaultLadder) {
		t.Fatalf("大图应生成全部 %d 级变体, got %d", len(defaultLadder), len(result.Variants))
	}
	for i, r := range defaultLadder {
		v := result.Variants[i]
		if v.Label != r.Label {
			t.Errorf("第 %d 级标签不符: got %s, want %s", i, v.Label, r.Label)
		}
		if v.Width > r.MaxDim || v.Height > r.MaxDim {
			t.Errorf("变体 %s 超出边界框 %d: %dx%d", v.Label, r.MaxDim, v.Width, v.Height)
		}
	}
}

func TestProcess_开启webp时每级附带webp变体(t *testing.T) {
	svc := newTestProcessor(true)
	data := makeTestPNG(t, 800, 600)

	result, err := svc.Process(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("处理失败: %v", err)
	}

	var webpCount int
	for _, v := range result.Variants {
		if v.Format == "webp" {
			webpCount++
		}
	}
	// thumbnail 与 small 各带一个 webp 变体
	if webpCount != 2 {
		t.Errorf("webp 变体数量不符: got %d, want 2", webpCount)
	}
}

func TestProcess_无法解码返回哨兵错误(t *testing.T) {
	svc := newTestProcessor(false)
	_, err := svc.Process(context.Background(), []byte("definitely not an image"), "image/png")
	if !errors.Is(err, constant.ErrUndecodableMedia) {
		t.Fatalf("应返回 ErrUndecodableMedia, got %v", err)
	}
}

func TestProcess_非图片类型返回空阶梯(t *testing.T) {
	svc := newTestProcessor(true)
	result, err := svc.Process(context.Background(), []byte("%PDF-1.7 ..."), "application/pdf")
	if err != nil {
		t.Fatalf("非图片类型不应报错: %v", err)
	}
	if len(result.Variants) != 0 || len(result.Failures) != 0 {
		t.Errorf("非图片类型应返回空阶梯: %+v", result)
	}
}
