package producer

import (
	"bytes"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/olekukonko/tablewriter"
)

// Report is the delivery outcome of a single message.
type Report struct {
	Partition int32
	Offset    int64
	Err       error
}

func newReport(msg *kafka.Message) Report {
	return Report{
		Partition: msg.TopicPartition.Partition,
		Offset:    int64(msg.TopicPartition.Offset),
		Err:       msg.TopicPartition.Error,
	}
}

// logReport renders the per-message delivery outcomes as a table through the
// logger.
func (p *Producer) logReport(reports []Report) {
	if len(reports) == 0 {
		return
	}

	b := new(bytes.Buffer)
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{`#`, `Topic`, `Partition`, `Offset`, `Status`})
	table.SetAutoFormatHeaders(true)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT})

	for i, report := range reports {
		status := `delivered`
		if report.Err != nil {
			status = fmt.Sprintf(`failed: %v`, report.Err)
		}

		table.Append([]string{
			fmt.Sprint(i + 1),
			p.topic,
			fmt.Sprint(report.Partition),
			fmt.Sprint(report.Offset),
			status,
		})
	}

	table.Render()
	p.logger.Info(`kavro.producer`, fmt.Sprintf("delivery report\n%s", b.String()))
}
