/*
 * @Description: 媒体变体处理服务，按固定阶梯生成多尺寸变体
 * @Author: 青澜
 * @Date: 2025-09-09 10:42:15
 * @LastEditTime: 2026-04-03 11:30:08
 * @LastEditors: 青澜
 */
package variant

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/qinglan-dev/qinglan-app/pkg/config"
	"github.com/qinglan-dev/qinglan-app/pkg/constant"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	// 注册 webp 解码器，imaging.Decode 才能识别 webp 原图
	_ "golang.org/x/image/webp"
)

// rung 是变体阶梯中的一级。MaxDim 是目标边界框的边长。
type rung struct {
	Label   string
	MaxDim  int
	Quality int
}

// defaultLadder 按从小到大的固定顺序生成。顺序即客户端回退顺序，不可打乱。
var defaultLadder = []rung{
	{Label: "thumbnail", MaxDim: 320, Quality: 75},
	{Label: "small", MaxDim: 640, Quality: 80},
	{Label: "medium", MaxDim: 1280, Quality: 82},
	{Label: "large", MaxDim: 2048, Quality: 85},
}

// ProcessedVariant 是一个成功生成的变体及其编码后的字节。
type ProcessedVariant struct {
	Label  string
	Format string // 编码格式: jpeg / png / gif / bmp / webp
	Width  int
	Height int
	Data   []byte
}

// FailedVariant 记录单个候选变体的失败，不中断其余候选。
type FailedVariant struct {
	Label  string
	Reason string
}

// Result 汇总一次变体处理的产物。
type Result struct {
	SourceWidth  int
	SourceHeight int
	Variants     []*ProcessedVariant
	Failures     []FailedVariant
}

// VariantProcessorService 定义媒体变体处理的契约。
type VariantProcessorService interface {
	// Process 解码原图并按阶梯生成变体。
	// 单个候选的失败被收集进 Result.Failures，绝不影响其它候选；
	// 只有原图本身无法解码时才返回 constant.ErrUndecodableMedia。
	// 非图片类型返回空阶梯（只投递原件），不算错误。
	Process(ctx context.Context, data []byte, mimeType string) (*Result, error)
}

type variantProcessorServiceImpl struct {
	webpVariants bool
}

// NewVariantProcessorService 创建变体处理服务实例。
func NewVariantProcessorService(cfg *config.Config) VariantProcessorService {
	return &variantProcessorServiceImpl{
		webpVariants: cfg.GetBool(config.KeyVariantWebpEnable),
	}
}

func (s *variantProcessorServiceImpl) Process(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return &Result{}, nil
	}

	srcImage, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constant.ErrUndecodableMedia, err)
	}

	bounds := srcImage.Bounds()
	result := &Result{
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
	}

	nativeFormat := encodeFormatFor(mimeType)

	for _, r := range defaultLadder {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// 不放大：目标边界框在两个方向都严格大于原图时跳过该级；
		// 恰好等于阶梯尺寸的原图仍生成该级变体
		if r.MaxDim > result.SourceWidth && r.MaxDim > result.SourceHeight {
			continue
		}

		resized := imaging.Fit(srcImage, r.MaxDim, r.MaxDim, imaging.Lanczos)

		if v, encErr := encodeVariant(resized, r, nativeFormat); encErr != nil {
			log.Printf("[变体处理] 生成失败: label=%s, format=%s, err=%v", r.Label, nativeFormat, encErr)
			result.Failures = append(result.Failures, FailedVariant{Label: r.Label, Reason: encErr.Error()})
		} else {
			result.Variants = append(result.Variants, v)
		}

		if s.webpVariants && nativeFormat != "webp" {
			label := r.Label + "_webp"
			if v, encErr := encodeVariant(resized, rung{Label: label, MaxDim: r.MaxDim, Quality: r.Quality}, "webp"); encErr != nil {
				log.Printf("[变体处理] 生成失败: label=%s, format=webp, err=%v", label, encErr)
				result.Failures = append(result.Failures, FailedVariant{Label: label, Reason: encErr.Error()})
			} else {
				result.Variants = append(result.Variants, v)
			}
		}
	}

	return result, nil
}

// encodeVariant 把缩放后的图像编码为目标格式。
func encodeVariant(img image.Image, r rung, format string) (*ProcessedVariant, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(r.Quality)})
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	case "gif":
		err = imaging.Encode(&buf, img, imaging.GIF)
	case "bmp":
		err = imaging.Encode(&buf, img, imaging.BMP)
	default:
		format = "jpeg"
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(r.Quality))
	}
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &ProcessedVariant{
		Label:  r.Label,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   buf.Bytes(),
	}, nil
}

// encodeFormatFor 把原图 MIME 映射为变体编码格式。
// GIF 动图缩放会丢帧，统一转为 jpeg 静态变体。
func encodeFormatFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	default:
		return "jpeg"
	}
}

// ExtensionForFormat 返回变体格式对应的文件扩展名（含点）。
func ExtensionForFormat(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	default:
		return "." + format
	}
}
