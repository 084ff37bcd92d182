// Package prompt builds the text-generation prompts used by the tagger.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/internal/util"
)

type contentTypeContext struct {
	Description string
	Focus       string
	Keywords    []string
}

var contentTypeContexts = map[domain.ContentType]contentTypeContext{
	domain.ContentTypeLongform: {
		Description: "롱폼 콘텐츠 (10분+ 영상)",
		Focus:       "심화 분석, 완전 정복, 상세 설명, 강의, 튜토리얼",
		Keywords:    []string{"심화", "완전정복", "상세분석", "강의", "깊이있는", "전문"},
	},
	domain.ContentTypeShortform: {
		Description: "숏폼 콘텐츠 (1분 이하 짧은 영상)",
		Focus:       "빠른 팁, 하이라이트, 요약, 트렌드, 간단 정보",
		Keywords:    []string{"팁", "요약", "하이라이트", "트렌드", "빠른", "간단"},
	},
	domain.ContentTypeMixed: {
		Description: "혼합형 콘텐츠 (롱폼 + 숏폼 병행)",
		Focus:       "다양한 형태의 콘텐츠, 유연한 접근",
		Keywords:    []string{"다양한", "유연한", "멀티", "종합"},
	},
}

// BuildTagPrompt renders the tag-extraction prompt for a channel. The
// response is requested as a literal array so the parser can pull out the
// first bracketed list.
func BuildTagPrompt(channel *domain.Channel, contentType domain.ContentType) string {
	ctx, ok := contentTypeContexts[contentType]
	if !ok {
		ctx = contentTypeContexts[domain.ContentTypeLongform]
	}

	description := util.TruncateString(channel.Description, constants.AIConfig.MaxPromptDescription)
	if description == "" {
		description = "없음"
	}
	customURL := channel.CustomURL
	if customURL == "" {
		customURL = "없음"
	}

	return fmt.Sprintf(`다음 채널의 특성을 분석해서 핵심 태그 5-8개를 추출해주세요.

채널명: %s
설명: %s
구독자 수: %d
사용자 정의 URL: %s
콘텐츠 유형: %s

요구사항:
- 채널의 주요 콘텐츠 카테고리
- 대상 청중
- 콘텐츠 스타일 (특히 %s)
- 전문 분야
- %s 형태에 맞는 특성 반영

추천 키워드 유형: %s

응답 형식: ["태그1", "태그2", "태그3", ...]
한글 태그 우선, 간단명료하게.`,
		channel.Name,
		description,
		channel.Subscribers,
		customURL,
		ctx.Description,
		ctx.Focus,
		string(contentType),
		strings.Join(ctx.Keywords, ", "),
	)
}
