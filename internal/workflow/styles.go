package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Named slide-design presets. Each value is injected verbatim into the
// studio customization prompt.
var stylePresets = map[string]string{
	"미니멀 젠": "디자인 스타일: 미니멀 젠. 여백을 넉넉하게 쓰고 한 슬라이드에 하나의 메시지만 담으세요. " +
		"무채색 바탕에 단정한 산세리프 타이포그래피, 장식 요소는 최소화합니다.",
	"클레이 3D": "디자인 스타일: 클레이 3D. 부드러운 점토 질감의 3D 일러스트와 파스텔 톤 배경을 사용하세요. " +
		"둥근 모서리와 입체감 있는 아이콘으로 친근한 분위기를 만듭니다.",
	"메디컬 케어": "디자인 스타일: 메디컬 케어. 청결한 화이트와 블루 계열 배경에 의료 일러스트를 사용하세요. " +
		"해부학 도식과 단계별 치료 흐름도를 적극 활용하고, 신뢰감 있는 차분한 톤을 유지합니다.",
	"사이언스 랩": "디자인 스타일: 사이언스 랩. 실험실 모티프와 다이어그램 중심 구성을 사용하세요. " +
		"데이터는 차트로, 과정은 플로우로 표현하고 네이비와 민트 포인트 컬러를 씁니다.",
	"학술 논문": "디자인 스타일: 학술 논문. 세리프 제목과 절제된 레이아웃, 번호 매긴 섹션 구조를 사용하세요. " +
		"출처 표기를 슬라이드 하단에 두고 그래프와 표 중심으로 구성합니다.",
	"인포그래픽": "디자인 스타일: 인포그래픽. 모든 내용을 아이콘, 수치, 비교 도표로 시각화하세요. " +
		"텍스트 문단 대신 키워드와 숫자를 크게 배치합니다.",
	"코퍼레이트": "디자인 스타일: 코퍼레이트. 딥 네이비와 골드 포인트의 비즈니스 프레젠테이션 스타일입니다. " +
		"재무 수치는 표와 막대 차트로, 핵심 지표는 카드형 레이아웃으로 강조하세요.",
	"클린 모던": "디자인 스타일: 클린 모던. 밝은 배경과 선명한 포인트 컬러 하나, 기하학적 구성 요소를 사용하세요. " +
		"제목은 크고 굵게, 본문은 간결한 불릿으로 정리합니다.",
	"다크 모드": "디자인 스타일: 다크 모드. 짙은 차콜 배경에 밝은 텍스트와 네온 포인트 컬러를 사용하세요. " +
		"차트와 강조 숫자가 어두운 배경 위에서 돋보이도록 구성합니다.",
}

const defaultStyle = "클린 모던"

// StyleNames lists the preset names in stable order.
func StyleNames() []string {
	names := make([]string, 0, len(stylePresets))
	for name := range stylePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StylePrompt returns the prompt block for a preset name.
func StylePrompt(name string) (string, bool) {
	p, ok := stylePresets[name]
	return p, ok
}

// StyleForCategory picks the default preset for a topic category.
func StyleForCategory(category string) string {
	switch strings.ToLower(category) {
	case "medical", "의료":
		return "메디컬 케어"
	case "finance", "금융":
		return "코퍼레이트"
	default:
		return defaultStyle
	}
}

// designPrompt assembles the studio customization text: style block,
// language and focus instructions, and a date pin so the deck carries a
// deterministic date.
func designPrompt(style, topic, focus, language string, now time.Time) string {
	block, ok := stylePresets[style]
	if !ok {
		block = stylePresets[defaultStyle]
	}

	var sb strings.Builder
	sb.WriteString(block)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "주제: %s.\n", topic)
	if focus != "" {
		fmt.Fprintf(&sb, "다음 내용을 중심으로 구성하세요: %s.\n", focus)
	}
	if language == "en" {
		sb.WriteString("Write all slide text in English.\n")
	} else {
		sb.WriteString("모든 슬라이드 텍스트는 한국어로 작성하세요.\n")
	}
	fmt.Fprintf(&sb, "작성 기준일은 %s (%s) 입니다. 슬라이드에 날짜를 표기할 때 반드시 이 날짜를 사용하세요.",
		now.Format("2006.01.02"),
		fmt.Sprintf("%d년 %02d월 %02d일", now.Year(), int(now.Month()), now.Day()))
	return sb.String()
}
