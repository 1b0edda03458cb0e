package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTopic(t *testing.T) {
	t.Run("should round trip a topic through its join filter", func(t *testing.T) {
		req := require.New(t)
		topic := Topic{Name: "room:r1", Table: "messages", Column: "room_id", Value: "r1"}

		parsed, err := ParseTopic(TopicPrefix+topic.Name, ChangeFilter{
			Event: OpInsert, Schema: "public", Table: topic.Table, Filter: topic.Filter(),
		})

		req.NoError(err)
		req.Equal(topic, parsed)
	})

	t.Run("should reject foreign topics and filters", func(t *testing.T) {
		req := require.New(t)
		good := ChangeFilter{Event: OpInsert, Table: "messages", Filter: "room_id=eq.r1"}

		_, err := ParseTopic("room:r1", good)
		req.Error(err)

		_, err = ParseTopic("realtime:room:r1", ChangeFilter{Event: "UPDATE", Table: "messages", Filter: "room_id=eq.r1"})
		req.Error(err)

		_, err = ParseTopic("realtime:room:r1", ChangeFilter{Event: OpInsert, Table: "messages", Filter: "room_id=gt.1"})
		req.Error(err)
	})
}

func TestReply(t *testing.T) {
	req := require.New(t)

	f, err := Reply("realtime:room:r1", "7", ReplyError, map[string]string{"reason": "forbidden"})
	req.NoError(err)
	req.Equal(EventReply, f.Event)
	req.Equal("7", f.Ref)

	var reply ReplyPayload
	req.NoError(json.Unmarshal(f.Payload, &reply))
	req.Equal(ReplyError, reply.Status)
	req.JSONEq(`{"reason":"forbidden"}`, string(reply.Response))
}
