package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Shared lexicons
// ============================================================================

// Members lists the cast names the classifier may answer with.
var Members = []string{
	"유재석", "박명수", "정준하", "정형돈", "노홍철", "하하", "길", "데프콘", "전진", "광희",
}

// Emotions is the closed set of dominant emotion labels.
var Emotions = []string{
	"기쁨", "슬픔", "분노", "놀람", "웃음", "당황", "감동", "기타",
}

// Unknown is the sentinel the model uses for member and episode when it cannot tell.
const Unknown = "알수없음"

// ============================================================================
// Classification prompt (vision model)
// ============================================================================

// classificationTemplate asks for a single JSON object describing the meme.
// %s slots: optional search hint, member list, emotion list.
const classificationTemplate = `이 이미지는 한국 예능 프로그램 "무한도전(MBC)"의 캡처/짤이야.
이 이미지를 분석해서 아래 JSON 형식으로 메타데이터를 생성해줘.
%s
규칙:
1. 무한도전과 관련 없는 이미지라면 "relevant": false로 표시해
2. title은 이 짤이 대화에서 쓰일 때의 대사나 상황을 짧게 표현 (예: "무야호~", "그건 니 생각이고")
3. tags는 5~8개, 감정/상황/인물 관련 키워드
4. situation은 이 짤을 실제로 쓸 수 있는 상황 3가지 이상
5. member는 무한도전 멤버 이름 (%s 등)
6. 멤버를 특정할 수 없으면 "` + Unknown + `"으로

JSON만 응답해. 다른 텍스트는 포함하지 마.

{
  "relevant": true,
  "title": "짤 제목/대사",
  "tags": ["태그1", "태그2", ...],
  "situation": "이 짤을 쓸 수 있는 상황 설명",
  "description": "이미지에서 일어나는 장면 설명",
  "member": "멤버이름",
  "episode": "추정 회차 또는 코너명 (모르면 '` + Unknown + `')",
  "emotion": "주요 감정 (%s)"
}`

// Classification builds the vision prompt. keyword is the search term that
// found the image and is added as a hint when present.
func Classification(keyword string) string {
	hint := ""
	if k := strings.TrimSpace(keyword); k != "" {
		hint = fmt.Sprintf("\n참고: 이 이미지는 \"%s\" 검색으로 찾은 거야.\n", k)
	}
	return fmt.Sprintf(classificationTemplate,
		hint,
		strings.Join(Members, ", "),
		strings.Join(Emotions, "/"),
	)
}
