package orchestrator

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// FallbackAuthor 는 로컬 템플릿으로 본문을 만든 경우의 author_tag 이다.
const FallbackAuthor = "Fallback"

type fallbackPool struct {
	intro      string
	headings   []string
	paragraphs []string
	outro      string
}

var fallbackPools = map[string]fallbackPool{
	"ru": {
		intro: "Тема «%s» всё чаще появляется в обсуждениях разработчиков, исследователей и компаний, которые внедряют искусственный интеллект в свои продукты.",
		headings: []string{
			"Почему это важно",
			"Как это работает",
			"Где это применяется",
			"Ограничения и риски",
			"Что будет дальше",
		},
		paragraphs: []string{
			"Современные модели машинного обучения обучаются на больших массивах данных и находят в них закономерности, которые человеку заметить сложно. Благодаря этому системы могут классифицировать изображения, понимать текст и прогнозировать события.",
			"Ключевую роль играет качество данных. Даже самая сложная архитектура не компенсирует ошибки разметки, поэтому команды тратят значительную часть времени на подготовку и проверку обучающих выборок.",
			"Вычислительные ресурсы постепенно дешевеют, а специализированные ускорители позволяют запускать модели не только в облаке, но и на ноутбуках, смартфонах и промышленных контроллерах.",
			"Компании используют такие решения для автоматизации рутинных задач: обработки обращений, анализа документов, контроля качества на производстве и рекомендаций для пользователей.",
			"Вместе с возможностями растут и требования к прозрачности. Разработчикам важно объяснять, на чём основано решение модели, и регулярно проверять её на смещения.",
			"Отдельное внимание уделяется безопасности: модели нужно защищать от утечек данных, а их ответы проверять, прежде чем использовать в критически важных процессах.",
			"Исследователи ожидают, что ближайшие годы принесут более компактные и энергоэффективные модели, которые будут лучше работать с несколькими типами данных одновременно.",
		},
		outro: "Итог простой: технология развивается быстро, и лучший способ разобраться в ней это пробовать инструменты на практике и следить за новыми исследованиями.",
	},
	"en": {
		intro: "The topic \"%s\" comes up more and more often among developers, researchers and companies that bring artificial intelligence into their products.",
		headings: []string{
			"Why it matters",
			"How it works",
			"Where it is used",
			"Limits and risks",
			"What comes next",
		},
		paragraphs: []string{
			"Modern machine learning models are trained on large datasets and find patterns that are hard for people to notice. This lets systems classify images, understand text and forecast events.",
			"Data quality plays a key role. Even the most advanced architecture cannot make up for labeling mistakes, so teams spend a large share of their time preparing and checking training data.",
			"Compute keeps getting cheaper, and dedicated accelerators let models run not only in the cloud but also on laptops, phones and industrial controllers.",
			"Companies use these systems to automate routine work: handling support requests, analyzing documents, checking quality on production lines and recommending content.",
			"Transparency requirements grow together with capabilities. Developers need to explain what a model's decision is based on and test it for bias on a regular basis.",
			"Security gets special attention as well: models must be protected from data leaks, and their answers should be reviewed before they drive critical processes.",
			"Researchers expect the next few years to bring smaller, more energy efficient models that handle several kinds of data at once.",
		},
		outro: "The takeaway is simple: the technology moves fast, and the best way to understand it is to try the tools in practice and follow new research.",
	},
}

// LocalFallbackText 는 원격 provider 없이 주제와 고정 문단 풀로 기사를 만든다.
// 같은 주제는 항상 같은 본문을 만들며, 결과는 minChars 이상이 되도록 문단을 계속 붙인다.
func LocalFallbackText(language, topic string, minChars int) string {
	pool, ok := fallbackPools[language]
	if !ok {
		pool = fallbackPools["ru"]
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	seed := int(h.Sum32() % uint32(len(pool.paragraphs)))

	var b strings.Builder
	b.WriteString(fmt.Sprintf(pool.intro, topic))
	b.WriteString("\n\n")

	sections := 3
	for i := 0; i < sections || NonSpaceLen(b.String()) < minChars; i++ {
		heading := pool.headings[(seed+i)%len(pool.headings)]
		para := pool.paragraphs[(seed+i*2)%len(pool.paragraphs)]
		next := pool.paragraphs[(seed+i*2+1)%len(pool.paragraphs)]
		fmt.Fprintf(&b, "## %s\n\n%s\n\n%s\n\n", heading, para, next)
		if i > 50 {
			break
		}
	}
	b.WriteString(pool.outro)
	return b.String()
}
